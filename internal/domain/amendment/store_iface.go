package amendment

import (
	"context"
	"time"
)

type StoreAPI interface {
	Create(ctx context.Context, a Amendment) (Amendment, error)
	Get(ctx context.Context, id int64) (Amendment, error)
	// Transition moves a pending amendment to status and records history in
	// the same statement. It returns ErrNotPending when the row has moved on.
	Transition(ctx context.Context, id int64, status Status, actorID, note string) (Amendment, error)
	RecordSync(ctx context.Context, id int64, sync SyncRecord) error
	History(ctx context.Context, id int64) ([]HistoryEntry, error)
	ListPending(ctx context.Context, limit, offset int) ([]Amendment, error)
	ApprovedForPeriod(ctx context.Context, staffID int64, start, end time.Time) ([]Amendment, error)
	FailedSyncs(ctx context.Context, limit int) ([]Amendment, error)
}

// SyncRecord is one Deputy sync attempt as stored against an amendment.
type SyncRecord struct {
	Synced        bool
	FailureReason string
	ActorID       string
	Note          string
	// Superseded lists Deputy timesheet IDs the sync replaced or merged.
	Superseded []int64
}
