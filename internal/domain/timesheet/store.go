package timesheet

import (
	"context"
	"time"

	"hrpay/internal/domain/money"
	"hrpay/internal/platform/querier"
)

type StoreAPI interface {
	ListForStaff(ctx context.Context, staffID int64, start, end time.Time) ([]Timesheet, error)
	WorkedAlone(ctx context.Context, t Timesheet) (bool, error)
	UpsertFromDeputy(ctx context.Context, t Timesheet) error
}

// superseded matches mirrored rows an amendment replaced in Deputy.
const superseded = `EXISTS (SELECT 1 FROM superseded_timesheets s WHERE s.deputy_id = timesheets.deputy_id)`

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) ListForStaff(ctx context.Context, staffID int64, start, end time.Time) ([]Timesheet, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, COALESCE(deputy_id, 0), staff_id, outlet_id, work_date, start_time, end_time,
           break_minutes, hourly_rate_cents, approved
    FROM timesheets
    WHERE staff_id = $1 AND work_date BETWEEN $2 AND $3
      AND NOT `+superseded+`
    ORDER BY start_time, id
  `, staffID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Timesheet
	for rows.Next() {
		var t Timesheet
		var rate int64
		if err := rows.Scan(&t.ID, &t.DeputyID, &t.StaffID, &t.OutletID, &t.Date, &t.Start, &t.End,
			&t.BreakMinutes, &rate, &t.Approved); err != nil {
			return nil, err
		}
		t.HourlyRate = money.Cents(rate)
		out = append(out, t)
	}
	return out, rows.Err()
}

// WorkedAlone reports whether no other staff member has a shift at the same
// outlet on the same date that overlaps t.
func (s *Store) WorkedAlone(ctx context.Context, t Timesheet) (bool, error) {
	var colleague bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM timesheets
      WHERE outlet_id = $1 AND work_date = $2 AND staff_id <> $3
        AND start_time < $5 AND end_time > $4
        AND NOT `+superseded+`
    )
  `, t.OutletID, t.Date, t.StaffID, t.Start, WrapEnd(t.Start, t.End)).Scan(&colleague)
	if err != nil {
		return false, err
	}
	return !colleague, nil
}

func (s *Store) UpsertFromDeputy(ctx context.Context, t Timesheet) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO timesheets (deputy_id, staff_id, outlet_id, work_date, start_time, end_time,
                            break_minutes, hourly_rate_cents, approved, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
    ON CONFLICT (deputy_id) DO UPDATE SET
      staff_id = EXCLUDED.staff_id,
      outlet_id = EXCLUDED.outlet_id,
      work_date = EXCLUDED.work_date,
      start_time = EXCLUDED.start_time,
      end_time = EXCLUDED.end_time,
      break_minutes = EXCLUDED.break_minutes,
      hourly_rate_cents = EXCLUDED.hourly_rate_cents,
      approved = EXCLUDED.approved,
      updated_at = now()
  `, t.DeputyID, t.StaffID, t.OutletID, t.Date, t.Start, WrapEnd(t.Start, t.End),
		t.BreakMinutes, int64(t.HourlyRate), t.Approved)
	return err
}

// Roster answers the worked-alone question from rows already in memory.
type Roster []Timesheet

func (r Roster) WorkedAlone(_ context.Context, t Timesheet) (bool, error) {
	end := WrapEnd(t.Start, t.End)
	for _, other := range r {
		if other.StaffID == t.StaffID || other.OutletID != t.OutletID || other.DateKey() != t.DateKey() {
			continue
		}
		if Overlap(t.Start, end, other.Start, WrapEnd(other.Start, other.End)) > 0 {
			return false, nil
		}
	}
	return true, nil
}
