package amendment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/deputy"
	"hrpay/internal/domain/notifications"
	"hrpay/internal/platform/validation"
)

// Syncer pushes an approved amendment into Deputy.
type Syncer interface {
	Sync(ctx context.Context, req deputy.Request) deputy.Result
}

type StaffLookup interface {
	DeputyEmployeeID(ctx context.Context, staffID int64) (int64, error)
}

type Service struct {
	store    StoreAPI
	deputy   Syncer
	staff    StaffLookup
	audit    audit.Recorder
	notifier notifications.Notifier
}

func NewService(store StoreAPI, syncer Syncer, staff StaffLookup, recorder audit.Recorder, notifier notifications.Notifier) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &Service{store: store, deputy: syncer, staff: staff, audit: recorder, notifier: notifier}
}

// ApprovalResult pairs the stored amendment with the Deputy outcome.
type ApprovalResult struct {
	Amendment Amendment      `json:"amendment"`
	Deputy    *deputy.Result `json:"deputy,omitempty"`
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, in Amendment) (Amendment, error) {
	if err := actor.Require(auth.PermAmendmentsWrite); err != nil {
		return Amendment{}, err
	}
	if !actor.Can(auth.PermAmendmentsReview) && actor.StaffID != in.StaffID {
		return Amendment{}, fmt.Errorf("%w: staff may only amend their own shifts", auth.ErrForbidden)
	}
	a, err := New(in)
	if err != nil {
		return Amendment{}, err
	}
	a.CreatedBy = actor.UserID

	created, err := s.store.Create(ctx, a)
	if err != nil {
		return Amendment{}, fmt.Errorf("create amendment: %w", err)
	}
	s.record(ctx, actor, audit.ActionAmendmentCreated, created.ID, nil, created)
	return created, nil
}

// Approve marks a pending amendment approved and reconciles it with Deputy.
// A failed sync does not undo the approval; it is recorded for ResyncFailed.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, id int64) (ApprovalResult, error) {
	if err := actor.Require(auth.PermAmendmentsReview); err != nil {
		return ApprovalResult{}, err
	}
	before, err := s.store.Get(ctx, id)
	if err != nil {
		return ApprovalResult{}, err
	}
	a, err := s.store.Transition(ctx, id, StatusApproved, actor.UserID, "")
	if err != nil {
		return ApprovalResult{}, err
	}

	res := s.sync(ctx, actor, a)
	a.SyncedToDeputy = res.Synced
	a.DeputyFailureReason = res.FailureReason

	s.record(ctx, actor, audit.ActionAmendmentApproved, a.ID, before, a)
	body := fmt.Sprintf("Your shift change for %s was approved.", a.NewStart.Format("Mon 2 Jan"))
	if err := s.notifier.Notify(ctx, a.StaffID, notifications.TypeAmendmentApproved, "Shift amendment approved", body); err != nil {
		slog.Warn("amendment notification failed", "amendmentId", a.ID, "err", err)
	}
	return ApprovalResult{Amendment: a, Deputy: &res}, nil
}

func (s *Service) Decline(ctx context.Context, actor auth.Actor, id int64, reason string) (Amendment, error) {
	if err := actor.Require(auth.PermAmendmentsReview); err != nil {
		return Amendment{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Amendment{}, validation.New("reason", "required", "a decline reason is required")
	}
	before, err := s.store.Get(ctx, id)
	if err != nil {
		return Amendment{}, err
	}
	a, err := s.store.Transition(ctx, id, StatusDeclined, actor.UserID, reason)
	if err != nil {
		return Amendment{}, err
	}

	s.record(ctx, actor, audit.ActionAmendmentDeclined, a.ID, before, a)
	if err := s.notifier.Notify(ctx, a.StaffID, notifications.TypeAmendmentDeclined, "Shift amendment declined", reason); err != nil {
		slog.Warn("amendment notification failed", "amendmentId", a.ID, "err", err)
	}
	return a, nil
}

func (s *Service) History(ctx context.Context, id int64) ([]HistoryEntry, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]Amendment, error) {
	return s.store.ListPending(ctx, limit, offset)
}

func (s *Service) ApprovedForPeriod(ctx context.Context, staffID int64, start, end time.Time) ([]Amendment, error) {
	return s.store.ApprovedForPeriod(ctx, staffID, start, end)
}

type ResyncStats struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

// ResyncFailed retries approved amendments whose Deputy sync failed.
func (s *Service) ResyncFailed(ctx context.Context, limit int) (ResyncStats, error) {
	var stats ResyncStats
	pending, err := s.store.FailedSyncs(ctx, limit)
	if err != nil {
		return stats, err
	}
	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Attempted++
		if res := s.sync(ctx, auth.System, a); res.Synced {
			stats.Synced++
		} else {
			stats.Failed++
		}
	}
	slog.Info("amendment resync complete", "attempted", stats.Attempted, "synced", stats.Synced, "failed", stats.Failed)
	return stats, nil
}

func (s *Service) sync(ctx context.Context, actor auth.Actor, a Amendment) deputy.Result {
	var res deputy.Result
	if s.deputy == nil {
		res = deputy.Result{FailureReason: "Deputy is not configured"}
	} else {
		employeeID, err := s.staff.DeputyEmployeeID(ctx, a.StaffID)
		if err != nil {
			res = deputy.Result{FailureReason: "staff lookup failed: " + err.Error()}
		} else {
			res = s.deputy.Sync(ctx, deputy.Request{
				AmendmentID:      a.ID,
				StaffID:          a.StaffID,
				DeputyEmployeeID: employeeID,
				OutletID:         a.OutletID,
				Start:            a.NewStart,
				End:              a.NewEnd,
				Shifts:           a.DeputyShifts,
			})
		}
	}

	record := SyncRecord{Synced: res.Synced, FailureReason: res.FailureReason, ActorID: actor.UserID, Note: syncNote(res)}
	if res.Synced {
		record.Superseded = res.Superseded()
	}
	if err := s.store.RecordSync(ctx, a.ID, record); err != nil {
		slog.Error("record deputy sync failed", "amendmentId", a.ID, "err", err)
	}
	if !res.Synced {
		slog.Warn("amendment deputy sync failed", "amendmentId", a.ID, "reason", res.FailureReason)
		if err := s.notifier.Notify(ctx, a.StaffID, notifications.TypeDeputySyncFailed, "Deputy sync failed", res.FailureReason); err != nil {
			slog.Warn("amendment notification failed", "amendmentId", a.ID, "err", err)
		}
	}
	return res
}

func syncNote(res deputy.Result) string {
	if !res.Synced {
		return res.FailureReason
	}
	var ids []string
	for _, d := range res.Details {
		if d.TimesheetID > 0 {
			ids = append(ids, strconv.FormatInt(d.TimesheetID, 10))
		}
	}
	note := fmt.Sprintf("%s: %s", res.Action, strings.Join(ids, ","))
	if replaced := res.Superseded(); len(replaced) > 0 {
		old := make([]string, len(replaced))
		for i, id := range replaced {
			old[i] = strconv.FormatInt(id, 10)
		}
		note += " (replaces " + strings.Join(old, ",") + ")"
	}
	return note
}

func (s *Service) record(ctx context.Context, actor auth.Actor, action string, id int64, before, after any) {
	if err := s.audit.Record(ctx, actor, action, "amendment", strconv.FormatInt(id, 10), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "amendmentId", id, "err", err)
	}
}
