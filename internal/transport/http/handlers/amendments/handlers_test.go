package amendmentshandler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/amendment"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/deputy"
	"hrpay/internal/platform/validation"
	"hrpay/internal/transport/http/handlers/handlertest"
)

type fakeService struct {
	created   []amendment.Amendment
	createdBy []auth.Actor
}

func (f *fakeService) Create(_ context.Context, actor auth.Actor, in amendment.Amendment) (amendment.Amendment, error) {
	f.created = append(f.created, in)
	f.createdBy = append(f.createdBy, actor)
	in.ID = 99
	in.Status = amendment.StatusPendingReview
	return in, nil
}

func (f *fakeService) Approve(_ context.Context, _ auth.Actor, id int64) (amendment.ApprovalResult, error) {
	if id == 404 {
		return amendment.ApprovalResult{}, amendment.ErrNotFound
	}
	return amendment.ApprovalResult{
		Amendment: amendment.Amendment{ID: id, Status: amendment.StatusApproved},
		Deputy:    &deputy.Result{Synced: false, FailureReason: "deputy unavailable"},
	}, nil
}

func (f *fakeService) Decline(_ context.Context, _ auth.Actor, id int64, reason string) (amendment.Amendment, error) {
	if reason == "" {
		return amendment.Amendment{}, validation.New("reason", "required", "a decline reason is required")
	}
	return amendment.Amendment{ID: id, Status: amendment.StatusDeclined}, nil
}

func (f *fakeService) History(_ context.Context, _ int64) ([]amendment.HistoryEntry, error) {
	return []amendment.HistoryEntry{{}}, nil
}

func (f *fakeService) ListPending(_ context.Context, _, _ int) ([]amendment.Amendment, error) {
	return nil, nil
}

func TestStaffCanCreateAmendment(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.Staff, http.MethodPost, "/amendments/", map[string]any{
		"staffId":       42,
		"payPeriodId":   3,
		"originalStart": "2025-03-03T09:00:00+13:00",
		"originalEnd":   "2025-03-03T17:00:00+13:00",
		"newStart":      "2025-03-03T09:00:00+13:00",
		"newEnd":        "2025-03-03T18:00:00+13:00",
		"reason":        "stayed late for stocktake",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.created, 1)
	assert.Equal(t, int64(42), svc.created[0].StaffID)
	assert.Equal(t, 18, svc.created[0].NewEnd.Hour())
	assert.Equal(t, "u-staff", svc.createdBy[0].UserID)
}

func TestStaffCannotReview(t *testing.T) {
	router := handlertest.Router(NewHandler(&fakeService{}))

	rec := handlertest.Do(t, router, handlertest.Staff, http.MethodPost, "/amendments/1/approve", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApproveReportsDeputyOutcome(t *testing.T) {
	router := handlertest.Router(NewHandler(&fakeService{}))

	rec := handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/amendments/5/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got amendment.ApprovalResult
	handlertest.Decode(t, rec, &got)
	assert.Equal(t, amendment.StatusApproved, got.Amendment.Status)
	require.NotNil(t, got.Deputy)
	assert.Equal(t, "deputy unavailable", got.Deputy.FailureReason)

	rec = handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/amendments/404/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeclineRequiresReason(t *testing.T) {
	router := handlertest.Router(NewHandler(&fakeService{}))

	rec := handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/amendments/5/decline", map[string]any{"reason": ""})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := handlertest.Decode(t, rec, nil)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec = handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/amendments/5/decline", map[string]any{"reason": "not rostered"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
