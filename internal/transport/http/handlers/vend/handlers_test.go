package vendhandler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/vend"
	"hrpay/internal/transport/http/handlers/handlertest"
)

type fakeService struct {
	payRunID string
	lines    []vend.PayRunLine
	created  []vend.Deduction
}

func (f *fakeService) Create(_ context.Context, _ auth.Actor, in vend.Deduction) (vend.Deduction, error) {
	f.created = append(f.created, in)
	in.ID = 1
	in.Status = vend.StatusPending
	return in, nil
}

func (f *fakeService) Get(_ context.Context, _ auth.Actor, id int64) (vend.Deduction, error) {
	return vend.Deduction{}, fmt.Errorf("deduction %d: %w", id, vend.ErrDeductionNotFound)
}

func (f *fakeService) AllocateDeduction(_ context.Context, _ auth.Actor, id int64) (vend.Allocation, error) {
	switch id {
	case 1:
		return vend.Allocation{DeductionID: id, Success: false, Error: "no open sales"}, nil
	case 2:
		return vend.Allocation{}, vend.ErrAlreadyAllocated
	case 3:
		return vend.Allocation{}, vend.ErrRateLimited
	}
	return vend.Allocation{DeductionID: id, Success: true, Applied: 2500}, nil
}

func (f *fakeService) AllocateAllForCustomer(_ context.Context, _ auth.Actor, _ string) (vend.BatchStats, error) {
	return vend.BatchStats{}, nil
}

func (f *fakeService) AllocateAllPending(_ context.Context, _ auth.Actor) (vend.BatchStats, error) {
	return vend.BatchStats{}, nil
}

func (f *fakeService) RetryFailed(_ context.Context, _ auth.Actor, _ int64) (vend.Allocation, error) {
	return vend.Allocation{}, vend.ErrNotFailed
}

func (f *fakeService) RetryAllFailed(_ context.Context, _ auth.Actor) (vend.BatchStats, error) {
	return vend.BatchStats{Total: 2, Successful: 1, Failed: 1, Errors: []string{"deduction 9: no open sales"}}, nil
}

func (f *fakeService) AllocateToPayRun(_ context.Context, _ auth.Actor, payRunID string, lines []vend.PayRunLine) (vend.PayRunResult, error) {
	f.payRunID = payRunID
	f.lines = lines
	return vend.PayRunResult{Created: []int64{5}}, nil
}

func (f *fakeService) Failed(_ context.Context, _ auth.Actor) ([]vend.Deduction, error) {
	return nil, nil
}

func (f *fakeService) History(_ context.Context, _ auth.Actor, _ string, _ int) ([]vend.LogEntry, error) {
	return nil, nil
}

func (f *fakeService) Stats(_ context.Context, _ auth.Actor) (map[vend.Status]vend.StatusStats, error) {
	return map[vend.Status]vend.StatusStats{}, nil
}

func TestAllocateStatuses(t *testing.T) {
	router := handlertest.Router(NewHandler(&fakeService{}))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/vend/deductions/1/allocate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got vend.Allocation
	handlertest.Decode(t, rec, &got)
	assert.False(t, got.Success)
	assert.Equal(t, "no open sales", got.Error)

	rec = handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/vend/deductions/2/allocate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/vend/deductions/3/allocate", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/vend/deductions/7/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodGet, "/vend/deductions/8", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAllocatePayRun(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/vend/pay-runs/pr-2025-10/allocate", map[string]any{
		"lines": []map[string]any{{"staffId": 42, "payslipNumber": "PS-1", "amount": "25.00"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pr-2025-10", svc.payRunID)
	require.Len(t, svc.lines, 1)
	assert.Equal(t, money.Cents(2500), svc.lines[0].Amount)

	rec = handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/vend/pay-runs/pr-2025-10/allocate", map[string]any{"lines": []any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRetryFailedAndPermissions(t *testing.T) {
	router := handlertest.Router(NewHandler(&fakeService{}))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/vend/retry-failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats vend.BatchStats
	handlertest.Decode(t, rec, &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Failed)

	rec = handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/vend/retry-failed", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateDeduction(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/vend/deductions", map[string]any{"staffId": 42, "amount": "12.50"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.created, 1)
	assert.Equal(t, money.Cents(1250), svc.created[0].Amount)
}
