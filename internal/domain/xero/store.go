package xero

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"

	"hrpay/internal/domain/money"
	cryptoutil "hrpay/internal/platform/crypto"
	"hrpay/internal/platform/querier"
)

type StoreAPI interface {
	InsertPayRun(ctx context.Context, r PayRunRecord) (PayRunRecord, error)
	GetPayRun(ctx context.Context, id int64) (PayRunRecord, error)
	ListPayRuns(ctx context.Context, limit int) ([]PayRunRecord, error)
	MarkPosted(ctx context.Context, id int64) (PayRunRecord, error)
	InsertBatch(ctx context.Context, b BatchRecord) (BatchRecord, error)
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const payRunColumns = `id, xero_pay_run_id, period_start, period_end, payment_date, status,
           payslip_ids, total_cents, created_by, created_at, posted_at`

func scanPayRun(row pgx.Row) (PayRunRecord, error) {
	var r PayRunRecord
	var total int64
	if err := row.Scan(&r.ID, &r.XeroPayRunID, &r.PeriodStart, &r.PeriodEnd, &r.PaymentDate, &r.Status,
		&r.PayslipIDs, &total, &r.CreatedBy, &r.CreatedAt, &r.PostedAt); err != nil {
		return PayRunRecord{}, err
	}
	r.Total = money.Cents(total)
	return r, nil
}

func (s *Store) InsertPayRun(ctx context.Context, r PayRunRecord) (PayRunRecord, error) {
	out, err := scanPayRun(s.DB.QueryRow(ctx, `
    INSERT INTO xero_pay_runs (xero_pay_run_id, period_start, period_end, payment_date, status, payslip_ids, total_cents, created_by)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    RETURNING `+payRunColumns+`
  `, r.XeroPayRunID, r.PeriodStart, r.PeriodEnd, r.PaymentDate, r.Status, r.PayslipIDs, int64(r.Total), r.CreatedBy))
	if err != nil {
		return PayRunRecord{}, fmt.Errorf("insert pay run: %w", err)
	}
	return out, nil
}

func (s *Store) GetPayRun(ctx context.Context, id int64) (PayRunRecord, error) {
	r, err := scanPayRun(s.DB.QueryRow(ctx, `
    SELECT `+payRunColumns+`
    FROM xero_pay_runs
    WHERE id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PayRunRecord{}, ErrPayRunNotFound
	}
	return r, err
}

func (s *Store) ListPayRuns(ctx context.Context, limit int) ([]PayRunRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+payRunColumns+`
    FROM xero_pay_runs
    ORDER BY created_at DESC
    LIMIT $1
  `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayRunRecord
	for rows.Next() {
		r, err := scanPayRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkPosted(ctx context.Context, id int64) (PayRunRecord, error) {
	r, err := scanPayRun(s.DB.QueryRow(ctx, `
    UPDATE xero_pay_runs
    SET status = 'posted', posted_at = now()
    WHERE id = $1 AND status = 'draft'
    RETURNING `+payRunColumns+`
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetPayRun(ctx, id); getErr != nil {
			return PayRunRecord{}, getErr
		}
		return PayRunRecord{}, ErrAlreadyPosted
	}
	return r, err
}

func (s *Store) InsertBatch(ctx context.Context, b BatchRecord) (BatchRecord, error) {
	var total int64
	err := s.DB.QueryRow(ctx, `
    INSERT INTO xero_batch_payments (xero_batch_id, period_end, payment_count, total_cents, created_by)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id, xero_batch_id, period_end, payment_count, total_cents, created_by, created_at
  `, b.XeroBatchID, b.PeriodEnd, b.PaymentCount, int64(b.Total), b.CreatedBy).Scan(
		&b.ID, &b.XeroBatchID, &b.PeriodEnd, &b.PaymentCount, &total, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return BatchRecord{}, fmt.Errorf("insert batch payment: %w", err)
	}
	b.Total = money.Cents(total)
	return b, nil
}

// TokenStore keeps the tenant's OAuth token encrypted at rest.
type TokenStore struct {
	DB       querier.Querier
	Crypto   *cryptoutil.Service
	TenantID string
}

func NewTokenStore(db querier.Querier, crypto *cryptoutil.Service, tenantID string) *TokenStore {
	return &TokenStore{DB: db, Crypto: crypto, TenantID: tenantID}
}

func (s *TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	var enc []byte
	err := s.DB.QueryRow(ctx, `
    SELECT token_enc FROM xero_tokens WHERE tenant_id = $1
  `, s.TenantID).Scan(&enc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	plain, err := s.Crypto.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("decrypt xero token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(plain, &tok); err != nil {
		return nil, fmt.Errorf("decode xero token: %w", err)
	}
	return &tok, nil
}

func (s *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	plain, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	enc, err := s.Crypto.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt xero token: %w", err)
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO xero_tokens (tenant_id, token_enc, expires_at, updated_at)
    VALUES ($1, $2, $3, now())
    ON CONFLICT (tenant_id) DO UPDATE
    SET token_enc = EXCLUDED.token_enc, expires_at = EXCLUDED.expires_at, updated_at = now()
  `, s.TenantID, enc, nullableTime(tok.Expiry))
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
