package bankexportshandler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/bankexport"
	"hrpay/internal/transport/http/handlers/handlertest"
)

type fakeService struct {
	periodEnd time.Time
	skipped   []string
	tampered  bool
}

func (f *fakeService) Export(_ context.Context, _ auth.Actor, periodEnd time.Time) (bankexport.Result, error) {
	f.periodEnd = periodEnd
	if len(f.skipped) > 0 {
		return bankexport.Result{Skipped: f.skipped}, bankexport.ErrNothingToExport
	}
	return bankexport.Result{Export: bankexport.Export{ID: "exp-1", PayslipCount: 3}}, nil
}

func (f *fakeService) VerifyFileIntegrity(_ context.Context, _ auth.Actor, id string) (bankexport.Verification, error) {
	return bankexport.Verification{ExportID: id, Expected: "a", Actual: "b", Valid: false}, nil
}

func (f *fakeService) Open(_ context.Context, _ auth.Actor, id string) (bankexport.Export, []byte, error) {
	if f.tampered {
		return bankexport.Export{}, nil, fmt.Errorf("%w: %s", bankexport.ErrTampered, id)
	}
	return bankexport.Export{ID: id, Filename: "asb_pay_20250309_abcd1234.csv"}, []byte("row\n"), nil
}

func (f *fakeService) List(_ context.Context, _ auth.Actor, _, _ int) ([]bankexport.Export, error) {
	return nil, nil
}

func TestExportCreates(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/bank-exports/", map[string]any{"periodEnd": "2025-03-09"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 9, svc.periodEnd.Day())

	var got bankexport.Result
	handlertest.Decode(t, rec, &got)
	assert.Equal(t, 3, got.Export.PayslipCount)
}

func TestExportNothingToExportListsSkipped(t *testing.T) {
	svc := &fakeService{skipped: []string{"payslip 4: Sam Lee has no bank account"}}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodPost, "/bank-exports/", map[string]any{"periodEnd": "2025-03-09"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "has no bank account")
}

func TestExportRequiresPermission(t *testing.T) {
	router := handlertest.Router(NewHandler(&fakeService{}))

	rec := handlertest.Do(t, router, handlertest.Manager, http.MethodPost, "/bank-exports/", map[string]any{"periodEnd": "2025-03-09"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDownload(t *testing.T) {
	svc := &fakeService{}
	router := handlertest.Router(NewHandler(svc))

	rec := handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodGet, "/bank-exports/exp-1/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "row\n", rec.Body.String())

	svc.tampered = true
	rec = handlertest.Do(t, router, handlertest.PayrollAdmin, http.MethodGet, "/bank-exports/exp-1/download", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
