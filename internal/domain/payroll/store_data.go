package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"hrpay/internal/domain/bonus"
	"hrpay/internal/domain/money"
	"hrpay/internal/platform/db"
	"hrpay/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const payslipColumns = `p.id, p.staff_id, COALESCE(s.first_name || ' ' || s.last_name, ''),
           p.period_start, p.period_end, p.hourly_rate_cents,
           p.ordinary_minutes, p.overtime_minutes, p.night_minutes, p.public_holiday_minutes,
           p.ordinary_pay_cents, p.overtime_pay_cents, p.night_pay_cents, p.public_holiday_pay_cents,
           p.bonuses, p.deductions, p.lines, p.gross_cents, p.deductions_cents, p.net_cents,
           p.alternative_holidays, p.status, p.exported_to_bank, p.warnings,
           p.calculated_by, p.calculated_at, COALESCE(p.reviewed_by, ''), COALESCE(p.approved_by, ''), p.approved_at`

func scanPayslip(row pgx.Row) (Payslip, error) {
	var p Payslip
	var bonuses, deductions, lines, warnings []byte
	if err := row.Scan(&p.ID, &p.StaffID, &p.StaffName,
		&p.PeriodStart, &p.PeriodEnd, &p.HourlyRate,
		&p.OrdinaryMinutes, &p.OvertimeMinutes, &p.NightMinutes, &p.PublicHolidayMinutes,
		&p.OrdinaryPay, &p.OvertimePay, &p.NightPay, &p.PublicHolidayPay,
		&bonuses, &deductions, &lines, &p.GrossPay, &p.TotalDeductions, &p.NetPay,
		&p.AlternativeHolidays, &p.Status, &p.ExportedToBank, &warnings,
		&p.CalculatedBy, &p.CalculatedAt, &p.ReviewedBy, &p.ApprovedBy, &p.ApprovedAt); err != nil {
		return Payslip{}, err
	}
	for _, f := range []struct {
		raw  []byte
		into any
	}{{bonuses, &p.Bonuses}, {deductions, &p.Deductions}, {lines, &p.Lines}, {warnings, &p.Warnings}} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.into); err != nil {
			return Payslip{}, fmt.Errorf("decode payslip %d: %w", p.ID, err)
		}
	}
	p.fillHours()
	return p, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Payslip, error) {
	p, err := scanPayslip(s.DB.QueryRow(ctx, `
    SELECT `+payslipColumns+`
    FROM payslips p
    LEFT JOIN staff s ON s.id = p.staff_id
    WHERE p.id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payslip{}, ErrPayslipNotFound
	}
	return p, err
}

func (s *Store) Count(ctx context.Context, f ListFilter) (int, error) {
	query, args := buildListQuery("SELECT COUNT(1)", f)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]Payslip, error) {
	query, args := buildListQuery("SELECT "+payslipColumns, f)
	query += " ORDER BY p.period_end DESC, s.last_name, p.id"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func buildListQuery(prefix string, f ListFilter) (string, []any) {
	query := prefix + " FROM payslips p LEFT JOIN staff s ON s.id = p.staff_id WHERE 1=1"
	var args []any
	if f.StaffID > 0 {
		args = append(args, f.StaffID)
		query += fmt.Sprintf(" AND p.staff_id = $%d", len(args))
	}
	if !f.PeriodStart.IsZero() {
		args = append(args, f.PeriodStart)
		query += fmt.Sprintf(" AND p.period_start >= $%d", len(args))
	}
	if !f.PeriodEnd.IsZero() {
		args = append(args, f.PeriodEnd)
		query += fmt.Sprintf(" AND p.period_end <= $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND p.status = $%d", len(args))
	}
	return query, args
}

func (s *Store) Transition(ctx context.Context, id int64, from []Status, to Status, actorID string) (Payslip, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	var updated int64
	err := s.DB.QueryRow(ctx, `
    UPDATE payslips SET
      status = $2,
      reviewed_by = CASE WHEN $2 = 'reviewed' THEN $4 ELSE reviewed_by END,
      approved_by = CASE WHEN $2 = 'approved' THEN $4 WHEN $2 = 'reviewed' THEN NULL ELSE approved_by END,
      approved_at = CASE WHEN $2 = 'approved' THEN now() WHEN $2 = 'reviewed' THEN NULL ELSE approved_at END,
      updated_at = now()
    WHERE id = $1 AND status = ANY($3) AND exported_to_bank = false
    RETURNING id
  `, id, string(to), allowed, actorID).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return Payslip{}, getErr
		}
		return Payslip{}, ErrInvalidTransition
	}
	if err != nil {
		return Payslip{}, err
	}
	return s.Get(ctx, updated)
}

// TxStore runs payslip calculations in a pgx transaction.
type TxStore struct {
	DB db.Beginner
}

func NewTxStore(pool db.Beginner) *TxStore {
	return &TxStore{DB: pool}
}

func (s *TxStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTransaction(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, bonuses: bonus.NewStore(tx)})
	})
}

type pgTx struct {
	tx      pgx.Tx
	bonuses *bonus.Store
}

func (t *pgTx) LockStaff(ctx context.Context, staffID int64) error {
	return db.LockStaff(ctx, t.tx, advisoryLockNamespace, staffID)
}

func (t *pgTx) Existing(ctx context.Context, staffID int64, period Period) (Payslip, error) {
	p, err := scanPayslip(t.tx.QueryRow(ctx, `
    SELECT `+payslipColumns+`
    FROM payslips p
    LEFT JOIN staff s ON s.id = p.staff_id
    WHERE p.staff_id = $1 AND p.period_start = $2 AND p.period_end = $3
    FOR UPDATE OF p
  `, staffID, period.Start, period.End))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payslip{}, ErrPayslipNotFound
	}
	return p, err
}

func (t *pgTx) BonusSummary(ctx context.Context, staffID int64, period Period, payslipID int64) (bonus.Summary, error) {
	return t.bonuses.SummaryForUpdate(ctx, staffID, period.Start, period.End, payslipID)
}

func (t *pgTx) MarkBonusesPaid(ctx context.Context, staffID, payslipID int64, period Period) (bonus.Claimed, error) {
	return t.bonuses.MarkPaid(ctx, staffID, payslipID, period.Start, period.End)
}

func (t *pgTx) Advances(ctx context.Context, staffID int64, period Period) (money.Cents, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `
    SELECT COALESCE(SUM(deduction_amount_cents), 0)
    FROM advances
    WHERE staff_id = $1 AND active = true
      AND start_date <= $3 AND (end_date IS NULL OR end_date >= $2)
  `, staffID, period.Start, period.End).Scan(&total)
	return money.Cents(total), err
}

func (t *pgTx) PendingVendDeductions(ctx context.Context, staffID int64) (money.Cents, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `
    SELECT COALESCE(SUM(amount_cents), 0)
    FROM vend_deductions
    WHERE staff_id = $1 AND status = 'pending' AND pay_run_id IS NULL
  `, staffID).Scan(&total)
	return money.Cents(total), err
}

func (t *pgTx) UnpaidLeaveMinutes(ctx context.Context, staffID int64, period Period) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `
    SELECT COALESCE(SUM(minutes), 0)
    FROM unpaid_leave
    WHERE staff_id = $1 AND approved = true AND leave_date BETWEEN $2 AND $3
  `, staffID, period.Start, period.End).Scan(&total)
	return total, err
}

// UpsertPayslip replaces the period's payslip unless it has moved past review.
func (t *pgTx) UpsertPayslip(ctx context.Context, p Payslip) (Payslip, error) {
	bonuses, err := json.Marshal(p.Bonuses)
	if err != nil {
		return Payslip{}, err
	}
	deductions, err := json.Marshal(p.Deductions)
	if err != nil {
		return Payslip{}, err
	}
	lines, err := json.Marshal(p.Lines)
	if err != nil {
		return Payslip{}, err
	}
	warnings, err := json.Marshal(p.Warnings)
	if err != nil {
		return Payslip{}, err
	}

	err = t.tx.QueryRow(ctx, `
    INSERT INTO payslips (staff_id, period_start, period_end, hourly_rate_cents,
                          ordinary_minutes, overtime_minutes, night_minutes, public_holiday_minutes,
                          ordinary_pay_cents, overtime_pay_cents, night_pay_cents, public_holiday_pay_cents,
                          bonuses, deductions, lines, gross_cents, deductions_cents, net_cents,
                          alternative_holidays, status, warnings, calculated_by, calculated_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,'calculated',$20,$21, now(), now())
    ON CONFLICT (staff_id, period_start, period_end) DO UPDATE SET
      hourly_rate_cents = EXCLUDED.hourly_rate_cents,
      ordinary_minutes = EXCLUDED.ordinary_minutes,
      overtime_minutes = EXCLUDED.overtime_minutes,
      night_minutes = EXCLUDED.night_minutes,
      public_holiday_minutes = EXCLUDED.public_holiday_minutes,
      ordinary_pay_cents = EXCLUDED.ordinary_pay_cents,
      overtime_pay_cents = EXCLUDED.overtime_pay_cents,
      night_pay_cents = EXCLUDED.night_pay_cents,
      public_holiday_pay_cents = EXCLUDED.public_holiday_pay_cents,
      bonuses = EXCLUDED.bonuses,
      deductions = EXCLUDED.deductions,
      lines = EXCLUDED.lines,
      gross_cents = EXCLUDED.gross_cents,
      deductions_cents = EXCLUDED.deductions_cents,
      net_cents = EXCLUDED.net_cents,
      alternative_holidays = EXCLUDED.alternative_holidays,
      status = 'calculated',
      warnings = EXCLUDED.warnings,
      calculated_by = EXCLUDED.calculated_by,
      calculated_at = now(),
      reviewed_by = NULL,
      updated_at = now()
    WHERE payslips.status IN ('calculated', 'reviewed') AND payslips.exported_to_bank = false
    RETURNING id, status, calculated_at
  `, p.StaffID, p.PeriodStart, p.PeriodEnd, int64(p.HourlyRate),
		p.OrdinaryMinutes, p.OvertimeMinutes, p.NightMinutes, p.PublicHolidayMinutes,
		int64(p.OrdinaryPay), int64(p.OvertimePay), int64(p.NightPay), int64(p.PublicHolidayPay),
		bonuses, deductions, lines, int64(p.GrossPay), int64(p.TotalDeductions), int64(p.NetPay),
		p.AlternativeHolidays, warnings, p.CalculatedBy).Scan(&p.ID, &p.Status, &p.CalculatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payslip{}, ErrPayslipLocked
	}
	if err != nil {
		return Payslip{}, err
	}
	p.fillHours()
	return p, nil
}
