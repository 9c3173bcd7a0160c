package audithandler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/audit"
	"hrpay/internal/transport/http/handlers/handlertest"
)

type fakeService struct {
	filter  audit.Filter
	details bool
	limit   int
}

func (f *fakeService) Count(_ context.Context, _ audit.Filter) (int, error) { return 1, nil }

func (f *fakeService) List(_ context.Context, filter audit.Filter, includeDetails bool, limit, _ int) ([]audit.Event, error) {
	f.filter, f.details, f.limit = filter, includeDetails, limit
	return []audit.Event{{
		ID: "1", ActorID: "u-admin", Action: audit.ActionPayslipApproved, EntityType: "payslip", EntityID: "5",
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}}, nil
}

func TestListEvents(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodGet, "/audit/events?entityType=payslip&entityId=5&includeDetails=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, "payslip", svc.filter.EntityType)
	assert.Equal(t, "5", svc.filter.EntityID)
	assert.True(t, svc.details)

	rec = handlertest.Do(t, router, handlertest.Manager, http.MethodGet, "/audit/events", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportEventsCSV(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodGet, "/audit/events/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1,u-admin,payslip.approved,payslip,5,,,2025-03-10T09:00:00Z", lines[1])
	assert.Equal(t, exportLimit, svc.limit)
}
