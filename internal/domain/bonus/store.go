package bonus

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hrpay/internal/domain/money"
	"hrpay/internal/platform/querier"
)

type StoreAPI interface {
	Summary(ctx context.Context, staffID int64, start, end time.Time, payslipID int64) (Summary, error)
	CreateMonthly(ctx context.Context, b MonthlyBonus) (MonthlyBonus, error)
	GetMonthly(ctx context.Context, id int64) (MonthlyBonus, error)
	DecideMonthly(ctx context.Context, id int64, approve bool, actorID string) (MonthlyBonus, error)
	ListMonthly(ctx context.Context, staffID int64, start, end time.Time) ([]MonthlyBonus, error)
}

// Store works against a pool or a transaction. Inside a payslip transaction
// SummaryForUpdate and MarkPaid must run on the same pgx.Tx.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// Units are claimable when unpaid or already owned by the payslip being
// recalculated.
const claimable = `(bonus_paid = false OR paid_in_payslip_id = $4)`

func (s *Store) Summary(ctx context.Context, staffID int64, start, end time.Time, payslipID int64) (Summary, error) {
	var out Summary
	var monthly int64
	err := s.DB.QueryRow(ctx, `
    SELECT
      (SELECT COUNT(1) FROM vape_drops
        WHERE staff_id = $1 AND drop_date BETWEEN $2 AND $3 AND `+claimable+`),
      (SELECT COUNT(1) FROM google_reviews
        WHERE staff_id = $1 AND review_date BETWEEN $2 AND $3 AND verified = true AND `+claimable+`),
      (SELECT COUNT(1) FROM monthly_bonuses
        WHERE staff_id = $1 AND bonus_month BETWEEN $2 AND $3 AND approved = true AND `+claimable+`),
      (SELECT COALESCE(SUM(amount_cents), 0) FROM monthly_bonuses
        WHERE staff_id = $1 AND bonus_month BETWEEN $2 AND $3 AND approved = true AND `+claimable+`)
  `, staffID, start, end, payslipID).Scan(&out.VapeDrops, &out.GoogleReviews, &out.MonthlyBonuses, &monthly)
	if err != nil {
		return Summary{}, err
	}
	return priced(out, money.Cents(monthly)), nil
}

// SummaryForUpdate locks every claimable unit row before counting them.
func (s *Store) SummaryForUpdate(ctx context.Context, staffID int64, start, end time.Time, payslipID int64) (Summary, error) {
	var out Summary
	var err error
	if out.VapeDrops, _, err = s.lockUnits(ctx, `
    SELECT id, 0 FROM vape_drops
    WHERE staff_id = $1 AND drop_date BETWEEN $2 AND $3 AND `+claimable+`
    FOR UPDATE
  `, staffID, start, end, payslipID); err != nil {
		return Summary{}, err
	}
	if out.GoogleReviews, _, err = s.lockUnits(ctx, `
    SELECT id, 0 FROM google_reviews
    WHERE staff_id = $1 AND review_date BETWEEN $2 AND $3 AND verified = true AND `+claimable+`
    FOR UPDATE
  `, staffID, start, end, payslipID); err != nil {
		return Summary{}, err
	}
	var monthly money.Cents
	if out.MonthlyBonuses, monthly, err = s.lockUnits(ctx, `
    SELECT id, amount_cents FROM monthly_bonuses
    WHERE staff_id = $1 AND bonus_month BETWEEN $2 AND $3 AND approved = true AND `+claimable+`
    FOR UPDATE
  `, staffID, start, end, payslipID); err != nil {
		return Summary{}, err
	}
	return priced(out, monthly), nil
}

func (s *Store) lockUnits(ctx context.Context, query string, args ...any) (int, money.Cents, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	var count int
	var total money.Cents
	for rows.Next() {
		var id, amount int64
		if err := rows.Scan(&id, &amount); err != nil {
			return 0, 0, err
		}
		count++
		total += money.Cents(amount)
	}
	return count, total, rows.Err()
}

func priced(s Summary, monthly money.Cents) Summary {
	s.VapeDropAmount = VapeDropCents * money.Cents(s.VapeDrops)
	s.GoogleReviewAmount = GoogleReviewCents * money.Cents(s.GoogleReviews)
	s.MonthlyBonusAmount = monthly
	return s
}

// MarkPaid assigns every claimable unit in the period to payslipID. Run it on
// the transaction that called SummaryForUpdate.
func (s *Store) MarkPaid(ctx context.Context, staffID, payslipID int64, start, end time.Time) (Claimed, error) {
	var out Claimed
	tag, err := s.DB.Exec(ctx, `
    UPDATE vape_drops SET bonus_paid = true, paid_in_payslip_id = $4
    WHERE staff_id = $1 AND drop_date BETWEEN $2 AND $3 AND `+claimable, staffID, start, end, payslipID)
	if err != nil {
		return out, err
	}
	out.VapeDrops = tag.RowsAffected()

	tag, err = s.DB.Exec(ctx, `
    UPDATE google_reviews SET bonus_paid = true, paid_in_payslip_id = $4
    WHERE staff_id = $1 AND review_date BETWEEN $2 AND $3 AND verified = true AND `+claimable, staffID, start, end, payslipID)
	if err != nil {
		return out, err
	}
	out.GoogleReviews = tag.RowsAffected()

	tag, err = s.DB.Exec(ctx, `
    UPDATE monthly_bonuses SET bonus_paid = true, paid_in_payslip_id = $4
    WHERE staff_id = $1 AND bonus_month BETWEEN $2 AND $3 AND approved = true AND `+claimable, staffID, start, end, payslipID)
	if err != nil {
		return out, err
	}
	out.MonthlyBonuses = tag.RowsAffected()
	return out, nil
}

const monthlyColumns = `id, staff_id, bonus_month, bonus_type, amount_cents, COALESCE(description, ''),
           approved, declined, COALESCE(decided_by, ''), decided_at, bonus_paid, paid_in_payslip_id,
           created_by, created_at`

func scanMonthly(row pgx.Row) (MonthlyBonus, error) {
	var b MonthlyBonus
	var amount int64
	err := row.Scan(&b.ID, &b.StaffID, &b.Month, &b.Type, &amount, &b.Description,
		&b.Approved, &b.Declined, &b.DecidedBy, &b.DecidedAt, &b.BonusPaid, &b.PaidInPayslipID,
		&b.CreatedBy, &b.CreatedAt)
	b.Amount = money.Cents(amount)
	return b, err
}

func (s *Store) CreateMonthly(ctx context.Context, b MonthlyBonus) (MonthlyBonus, error) {
	return scanMonthly(s.DB.QueryRow(ctx, `
    INSERT INTO monthly_bonuses (staff_id, bonus_month, bonus_type, amount_cents, description, created_by)
    VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6)
    RETURNING `+monthlyColumns,
		b.StaffID, b.Month, b.Type, int64(b.Amount), b.Description, b.CreatedBy))
}

func (s *Store) GetMonthly(ctx context.Context, id int64) (MonthlyBonus, error) {
	b, err := scanMonthly(s.DB.QueryRow(ctx, "SELECT "+monthlyColumns+" FROM monthly_bonuses WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return MonthlyBonus{}, ErrNotFound
	}
	return b, err
}

// DecideMonthly approves or declines a bonus that is still undecided.
func (s *Store) DecideMonthly(ctx context.Context, id int64, approve bool, actorID string) (MonthlyBonus, error) {
	b, err := scanMonthly(s.DB.QueryRow(ctx, `
    UPDATE monthly_bonuses
    SET approved = $2, declined = NOT $2, decided_by = $3, decided_at = now()
    WHERE id = $1 AND approved = false AND declined = false
    RETURNING `+monthlyColumns, id, approve, actorID))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetMonthly(ctx, id); getErr != nil {
			return MonthlyBonus{}, getErr
		}
		return MonthlyBonus{}, ErrAlreadyDecided
	}
	return b, err
}

func (s *Store) ListMonthly(ctx context.Context, staffID int64, start, end time.Time) ([]MonthlyBonus, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+monthlyColumns+`
    FROM monthly_bonuses
    WHERE ($1 = 0 OR staff_id = $1) AND bonus_month BETWEEN $2 AND $3
    ORDER BY bonus_month, id
  `, staffID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyBonus
	for rows.Next() {
		b, err := scanMonthly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
