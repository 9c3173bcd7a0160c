package bankexport

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hrpay/internal/domain/money"
	"hrpay/internal/platform/db"
	"hrpay/internal/platform/querier"
)

type StoreAPI interface {
	Candidates(ctx context.Context, periodEnd time.Time) ([]Candidate, error)
	Get(ctx context.Context, id string) (Export, error)
	List(ctx context.Context, limit, offset int) ([]Export, error)
}

// TxAPI is the write side of an export. Insert and MarkExported must commit
// together.
type TxAPI interface {
	Insert(ctx context.Context, e Export) error
	// MarkExported returns how many payslips it actually moved.
	MarkExported(ctx context.Context, exportID string, payslipIDs []int64) (int64, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(tx TxAPI) error) error
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Candidates(ctx context.Context, periodEnd time.Time) ([]Candidate, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, staff_id, net_cents, period_end
    FROM payslips
    WHERE status = 'approved' AND exported_to_bank = false AND period_end = $1
    ORDER BY staff_id, id
  `, periodEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var net int64
		if err := rows.Scan(&c.PayslipID, &c.StaffID, &net, &c.PeriodEnd); err != nil {
			return nil, err
		}
		c.NetPay = money.Cents(net)
		out = append(out, c)
	}
	return out, rows.Err()
}

const exportColumns = `id::text, filename, file_hash, payslip_count, total_cents, period_end, created_by, created_at`

func scanExport(row pgx.Row) (Export, error) {
	var e Export
	var total int64
	if err := row.Scan(&e.ID, &e.Filename, &e.FileHash, &e.PayslipCount, &total, &e.PeriodEnd, &e.CreatedBy, &e.CreatedAt); err != nil {
		return Export{}, err
	}
	e.TotalAmount = money.Cents(total)
	return e, nil
}

func (s *Store) Get(ctx context.Context, id string) (Export, error) {
	e, err := scanExport(s.DB.QueryRow(ctx, `
    SELECT `+exportColumns+`
    FROM bank_exports
    WHERE id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Export{}, ErrNotFound
	}
	return e, err
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]Export, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+exportColumns+`
    FROM bank_exports
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type TxStore struct {
	DB db.Beginner
}

func NewTxStore(pool db.Beginner) *TxStore {
	return &TxStore{DB: pool}
}

func (s *TxStore) InTx(ctx context.Context, fn func(tx TxAPI) error) error {
	return db.WithTransaction(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Insert(ctx context.Context, e Export) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO bank_exports (id, filename, file_hash, payslip_count, total_cents, period_end, created_by, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, e.ID, e.Filename, e.FileHash, e.PayslipCount, int64(e.TotalAmount), e.PeriodEnd, e.CreatedBy, e.CreatedAt)
	return err
}

func (t *pgTx) MarkExported(ctx context.Context, exportID string, payslipIDs []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
    UPDATE payslips
    SET exported_to_bank = true, status = 'exported', bank_export_id = $2, updated_at = now()
    WHERE id = ANY($1) AND status = 'approved' AND exported_to_bank = false
  `, payslipIDs, exportID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
