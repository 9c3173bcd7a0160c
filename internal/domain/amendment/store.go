package amendment

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"hrpay/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const amendmentColumns = `id, staff_id, pay_period_id, COALESCE(outlet_id, 0),
           original_start, original_end, new_start, new_end, reason, status,
           COALESCE(deputy_shifts, '[]'::jsonb), synced_to_deputy, COALESCE(deputy_failure_reason, ''),
           created_by, COALESCE(reviewed_by, ''), reviewed_at, created_at`

func scanAmendment(row pgx.Row) (Amendment, error) {
	var a Amendment
	var shifts []byte
	if err := row.Scan(&a.ID, &a.StaffID, &a.PayPeriodID, &a.OutletID,
		&a.OriginalStart, &a.OriginalEnd, &a.NewStart, &a.NewEnd, &a.Reason, &a.Status,
		&shifts, &a.SyncedToDeputy, &a.DeputyFailureReason,
		&a.CreatedBy, &a.ReviewedBy, &a.ReviewedAt, &a.CreatedAt); err != nil {
		return Amendment{}, err
	}
	if len(shifts) > 0 {
		if err := json.Unmarshal(shifts, &a.DeputyShifts); err != nil {
			return Amendment{}, err
		}
	}
	return a, nil
}

func collect(rows pgx.Rows) ([]Amendment, error) {
	defer rows.Close()
	var out []Amendment
	for rows.Next() {
		a, err := scanAmendment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, a Amendment) (Amendment, error) {
	shifts, err := json.Marshal(a.DeputyShifts)
	if err != nil {
		return Amendment{}, err
	}
	return scanAmendment(s.DB.QueryRow(ctx, `
    WITH ins AS (
      INSERT INTO amendments (staff_id, pay_period_id, outlet_id, original_start, original_end,
                              new_start, new_end, reason, status, deputy_shifts, created_by)
      VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8, $9, $10, $11)
      RETURNING *
    ), hist AS (
      INSERT INTO amendment_history (amendment_id, action, to_status, actor_id)
      SELECT id, 'created', status, created_by FROM ins
    )
    SELECT `+amendmentColumns+` FROM ins
  `, a.StaffID, a.PayPeriodID, a.OutletID, a.OriginalStart, a.OriginalEnd,
		a.NewStart, a.NewEnd, a.Reason, a.Status, shifts, a.CreatedBy))
}

func (s *Store) Get(ctx context.Context, id int64) (Amendment, error) {
	a, err := scanAmendment(s.DB.QueryRow(ctx, `
    SELECT `+amendmentColumns+`
    FROM amendments
    WHERE id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Amendment{}, ErrNotFound
	}
	return a, err
}

func (s *Store) Transition(ctx context.Context, id int64, status Status, actorID, note string) (Amendment, error) {
	a, err := scanAmendment(s.DB.QueryRow(ctx, `
    WITH upd AS (
      UPDATE amendments
      SET status = $2, reviewed_by = $3, reviewed_at = now(), updated_at = now()
      WHERE id = $1 AND status = 'pending_review'
      RETURNING *
    ), hist AS (
      INSERT INTO amendment_history (amendment_id, action, from_status, to_status, actor_id, note)
      SELECT id, $2, 'pending_review', status, $3, NULLIF($4, '') FROM upd
    )
    SELECT `+amendmentColumns+` FROM upd
  `, id, status, actorID, note))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return Amendment{}, getErr
		}
		return Amendment{}, ErrNotPending
	}
	return a, err
}

// RecordSync stores a sync outcome, its history entry and the Deputy rows it
// superseded in one statement.
func (s *Store) RecordSync(ctx context.Context, id int64, sync SyncRecord) error {
	_, err := s.DB.Exec(ctx, `
    WITH upd AS (
      UPDATE amendments
      SET synced_to_deputy = $2, deputy_failure_reason = NULLIF($3, ''),
          deputy_sync_attempts = deputy_sync_attempts + 1, updated_at = now()
      WHERE id = $1
      RETURNING id, status
    ), sup AS (
      INSERT INTO superseded_timesheets (deputy_id, amendment_id)
      SELECT deputy_id, id FROM upd, unnest($6::bigint[]) AS deputy_id
      ON CONFLICT (deputy_id) DO NOTHING
    )
    INSERT INTO amendment_history (amendment_id, action, from_status, to_status, actor_id, note)
    SELECT id, 'deputy_sync', status, status, $4, NULLIF($5, '') FROM upd
  `, id, sync.Synced, sync.FailureReason, sync.ActorID, sync.Note, sync.Superseded)
	return err
}

func (s *Store) History(ctx context.Context, id int64) ([]HistoryEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, amendment_id, action, COALESCE(from_status, ''), COALESCE(to_status, ''),
           actor_id, COALESCE(note, ''), created_at
    FROM amendment_history
    WHERE amendment_id = $1
    ORDER BY created_at, id
  `, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.AmendmentID, &h.Action, &h.FromStatus, &h.ToStatus, &h.ActorID, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) ListPending(ctx context.Context, limit, offset int) ([]Amendment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+amendmentColumns+`
    FROM amendments
    WHERE status = 'pending_review'
    ORDER BY created_at, id
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) ApprovedForPeriod(ctx context.Context, staffID int64, start, end time.Time) ([]Amendment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+amendmentColumns+`
    FROM amendments
    WHERE staff_id = $1 AND status = 'approved' AND synced_to_deputy = false
      AND new_start >= $2 AND new_start < $3
    ORDER BY new_start, id
  `, staffID, start, end)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) FailedSyncs(ctx context.Context, limit int) ([]Amendment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+amendmentColumns+`
    FROM amendments
    WHERE status = 'approved' AND synced_to_deputy = false AND deputy_sync_attempts < 10
    ORDER BY reviewed_at, id
    LIMIT $1
  `, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}
