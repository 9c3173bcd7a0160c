package amendment

import (
	"errors"
	"time"

	"hrpay/internal/domain/deputy"
	"hrpay/internal/platform/validation"
)

type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusDeclined      Status = "declined"
)

var (
	ErrNotFound   = errors.New("amendment not found")
	ErrNotPending = errors.New("amendment is not pending review")
)

// Amendment is a correction to a worked shift raised by staff or a manager.
type Amendment struct {
	ID                  int64                `json:"id"`
	StaffID             int64                `json:"staffId" validate:"required,gt=0"`
	PayPeriodID         int64                `json:"payPeriodId" validate:"required,gt=0"`
	OutletID            int64                `json:"outletId,omitempty" validate:"gte=0"`
	OriginalStart       time.Time            `json:"originalStart" validate:"required"`
	OriginalEnd         time.Time            `json:"originalEnd" validate:"required"`
	NewStart            time.Time            `json:"newStart" validate:"required"`
	NewEnd              time.Time            `json:"newEnd" validate:"required,gtfield=NewStart"`
	Reason              string               `json:"reason" validate:"required,max=1000"`
	Status              Status               `json:"status"`
	DeputyShifts        []deputy.PickedShift `json:"deputyShifts,omitempty" validate:"dive"`
	SyncedToDeputy      bool                 `json:"syncedToDeputy"`
	DeputyFailureReason string               `json:"deputyFailureReason,omitempty"`
	CreatedBy           string               `json:"createdBy"`
	ReviewedBy          string               `json:"reviewedBy,omitempty"`
	ReviewedAt          *time.Time           `json:"reviewedAt,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
}

// New validates a and marks it pending review.
func New(a Amendment) (Amendment, error) {
	if err := validation.Struct(a); err != nil {
		return Amendment{}, err
	}
	a.Status = StatusPendingReview
	return a, nil
}

// MatchKey identifies the timesheet row this amendment replaces.
func (a Amendment) MatchKey() string {
	return a.OriginalStart.Format(MatchKeyLayout)
}

const MatchKeyLayout = "2006-01-02_15:04"

type HistoryEntry struct {
	ID          int64     `json:"id"`
	AmendmentID int64     `json:"amendmentId"`
	Action      string    `json:"action"`
	FromStatus  Status    `json:"fromStatus,omitempty"`
	ToStatus    Status    `json:"toStatus,omitempty"`
	ActorID     string    `json:"actorId"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	HistoryCreated    = "created"
	HistoryApproved   = "approved"
	HistoryDeclined   = "declined"
	HistoryDeputySync = "deputy_sync"
)
