package vend

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
	Create(ctx context.Context, d Deduction) (Deduction, error)
	Get(ctx context.Context, id int64) (Deduction, error)
	Pending(ctx context.Context, customerID string) ([]Deduction, error)
	Failed(ctx context.Context) ([]Deduction, error)
	// Claim moves a pending or failed deduction to allocating.
	Claim(ctx context.Context, id int64) (Deduction, error)
	ResetFailed(ctx context.Context, id int64) error
	// FailStale fails deductions left allocating for longer than olderThan.
	FailStale(ctx context.Context, olderThan time.Duration) (int64, error)
	History(ctx context.Context, customerID string, limit int) ([]LogEntry, error)
	Stats(ctx context.Context) (map[Status]StatusStats, error)
}

// TxAPI groups writes that must commit together.
type TxAPI interface {
	// InsertPayRunKey reports false when the key was already recorded.
	InsertPayRunKey(ctx context.Context, key, payRunID string, line PayRunLine) (bool, error)
	// Attach links pending deductions of one staff member to a pay run, in ID
	// order, while their running total stays within amount.
	Attach(ctx context.Context, key, payRunID string, line PayRunLine) ([]Deduction, error)
	Finish(ctx context.Context, id int64, status Status, applied money.Cents, paymentIDs []string, errMsg string) error
	Log(ctx context.Context, e LogEntry) error
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

const deductionColumns = `
           d.id, d.staff_id, COALESCE(d.vend_customer_id, s.vend_customer_id, ''),
           d.amount_cents, d.status, d.allocated_cents, COALESCE(d.payment_ids, '{}'),
           COALESCE(d.pay_run_id, ''), COALESCE(d.payslip_number, ''), COALESCE(d.idempotency_key, ''),
           COALESCE(d.error, ''), d.created_at, d.allocated_at`

func scanDeduction(row pgx.Row) (Deduction, error) {
	var d Deduction
	var amount, allocated int64
	if err := row.Scan(&d.ID, &d.StaffID, &d.VendCustomerID, &amount, &d.Status, &allocated, &d.PaymentIDs,
		&d.PayRunID, &d.PayslipNumber, &d.IdempotencyKey, &d.Error, &d.CreatedAt, &d.AllocatedAt); err != nil {
		return Deduction{}, err
	}
	d.Amount = money.Cents(amount)
	d.AllocatedAmount = money.Cents(allocated)
	return d, nil
}

func collect(rows pgx.Rows) ([]Deduction, error) {
	defer rows.Close()
	var out []Deduction
	for rows.Next() {
		d, err := scanDeduction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, d Deduction) (Deduction, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
    INSERT INTO vend_deductions (staff_id, vend_customer_id, amount_cents, status)
    VALUES ($1, NULLIF($2, ''), $3, 'pending')
    RETURNING id
  `, d.StaffID, d.VendCustomerID, int64(d.Amount)).Scan(&id)
	if err != nil {
		return Deduction{}, err
	}
	return s.Get(ctx, id)
}

func (s *Store) Get(ctx context.Context, id int64) (Deduction, error) {
	d, err := scanDeduction(s.DB.QueryRow(ctx, `
    SELECT`+deductionColumns+`
    FROM vend_deductions d
    JOIN staff s ON s.id = d.staff_id
    WHERE d.id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Deduction{}, ErrDeductionNotFound
	}
	return d, err
}

func (s *Store) Pending(ctx context.Context, customerID string) ([]Deduction, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+deductionColumns+`
    FROM vend_deductions d
    JOIN staff s ON s.id = d.staff_id
    WHERE d.status = 'pending'
      AND ($1 = '' OR COALESCE(d.vend_customer_id, s.vend_customer_id) = $1)
    ORDER BY d.id
  `, customerID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) Failed(ctx context.Context) ([]Deduction, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+deductionColumns+`
    FROM vend_deductions d
    JOIN staff s ON s.id = d.staff_id
    WHERE d.status = 'failed'
    ORDER BY d.id
  `)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) Claim(ctx context.Context, id int64) (Deduction, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE vend_deductions
    SET status = 'allocating', claimed_at = now(), error = NULL
    WHERE id = $1 AND status IN ('pending', 'failed')
  `, id)
	if err != nil {
		return Deduction{}, err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return Deduction{}, err
	}
	if tag.RowsAffected() == 0 {
		return Deduction{}, ErrAlreadyAllocated
	}
	return d, nil
}

func (s *Store) ResetFailed(ctx context.Context, id int64) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE vend_deductions
    SET status = 'pending', allocated_at = NULL
    WHERE id = $1 AND status = 'failed'
  `, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrNotFailed
	}
	return nil
}

func (s *Store) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE vend_deductions
    SET status = 'failed', error = 'allocation interrupted'
    WHERE status = 'allocating' AND claimed_at < now() - make_interval(secs => $1)
  `, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) History(ctx context.Context, customerID string, limit int) ([]LogEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, COALESCE(deduction_id, 0), vend_customer_id, action, amount_cents,
           COALESCE(payment_ids, '{}'), success, COALESCE(error, ''), performed_by, performed_at
    FROM vend_allocation_log
    WHERE ($1 = '' OR vend_customer_id = $1)
    ORDER BY performed_at DESC, id DESC
    LIMIT $2
  `, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var amount int64
		if err := rows.Scan(&e.ID, &e.DeductionID, &e.VendCustomerID, &e.Action, &amount,
			&e.PaymentIDs, &e.Success, &e.Error, &e.PerformedBy, &e.PerformedAt); err != nil {
			return nil, err
		}
		e.Amount = money.Cents(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (map[Status]StatusStats, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(1), COALESCE(SUM(amount_cents), 0)
    FROM vend_deductions
    WHERE amount_cents > 0
    GROUP BY status
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[Status]StatusStats{}
	for rows.Next() {
		var status Status
		var st StatusStats
		var total int64
		if err := rows.Scan(&status, &st.Count, &total); err != nil {
			return nil, err
		}
		st.Total = money.Cents(total)
		out[status] = st
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

func (t *pgTx) InsertPayRunKey(ctx context.Context, key, payRunID string, line PayRunLine) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
    INSERT INTO vend_pay_run_allocations (idempotency_key, pay_run_id, staff_id, payslip_number, amount_cents)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (idempotency_key) DO NOTHING
  `, key, payRunID, line.StaffID, line.PayslipNumber, int64(line.Amount))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) Attach(ctx context.Context, key, payRunID string, line PayRunLine) ([]Deduction, error) {
	rows, err := t.tx.Query(ctx, `
    SELECT`+deductionColumns+`
    FROM vend_deductions d
    JOIN staff s ON s.id = d.staff_id
    WHERE d.staff_id = $1 AND d.status = 'pending' AND d.pay_run_id IS NULL
    ORDER BY d.id
    FOR UPDATE OF d
  `, line.StaffID)
	if err != nil {
		return nil, err
	}
	pending, err := collect(rows)
	if err != nil {
		return nil, err
	}

	var picked []Deduction
	var ids []int64
	var sum money.Cents
	for _, d := range pending {
		if sum+d.Amount > line.Amount {
			break
		}
		sum += d.Amount
		d.PayRunID, d.PayslipNumber, d.IdempotencyKey = payRunID, line.PayslipNumber, key
		picked = append(picked, d)
		ids = append(ids, d.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = t.tx.Exec(ctx, `
    UPDATE vend_deductions
    SET pay_run_id = $2, payslip_number = $3, idempotency_key = $4
    WHERE id = ANY($1)
  `, ids, payRunID, line.PayslipNumber, key)
	if err != nil {
		return nil, err
	}
	return picked, nil
}

func (t *pgTx) Finish(ctx context.Context, id int64, status Status, applied money.Cents, paymentIDs []string, errMsg string) error {
	_, err := t.tx.Exec(ctx, `
    UPDATE vend_deductions
    SET status = $2,
        allocated_cents = $3,
        payment_ids = $4,
        error = NULLIF($5, ''),
        allocated_at = CASE WHEN $2 = 'allocated' THEN now() ELSE NULL END
    WHERE id = $1
  `, id, status, int64(applied), paymentIDs, errMsg)
	return err
}

func (t *pgTx) Log(ctx context.Context, e LogEntry) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO vend_allocation_log (deduction_id, vend_customer_id, action, amount_cents, payment_ids, success, error, performed_by)
    VALUES (NULLIF($1, 0), $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
  `, e.DeductionID, e.VendCustomerID, e.Action, int64(e.Amount), e.PaymentIDs, e.Success, e.Error, e.PerformedBy)
	return err
}
