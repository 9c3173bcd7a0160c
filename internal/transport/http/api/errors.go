package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"hrpay/internal/domain/amendment"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/bankexport"
	"hrpay/internal/domain/bonus"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/domain/staff"
	"hrpay/internal/domain/vend"
	"hrpay/internal/domain/xero"
	"hrpay/internal/platform/httpx"
	"hrpay/internal/platform/jobs"
	"hrpay/internal/platform/validation"
)

type mapping struct {
	err    error
	status int
	code   string
}

var mappings = []mapping{
	{auth.ErrForbidden, http.StatusForbidden, "forbidden"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},

	{pgx.ErrNoRows, http.StatusNotFound, "not_found"},
	{amendment.ErrNotFound, http.StatusNotFound, "amendment_not_found"},
	{bankexport.ErrNotFound, http.StatusNotFound, "bank_export_not_found"},
	{bonus.ErrNotFound, http.StatusNotFound, "bonus_not_found"},
	{payroll.ErrPayslipNotFound, http.StatusNotFound, "payslip_not_found"},
	{staff.ErrStaffNotFound, http.StatusNotFound, "staff_not_found"},
	{vend.ErrDeductionNotFound, http.StatusNotFound, "deduction_not_found"},
	{xero.ErrPayRunNotFound, http.StatusNotFound, "pay_run_not_found"},

	{amendment.ErrNotPending, http.StatusConflict, "amendment_not_pending"},
	{bonus.ErrAlreadyDecided, http.StatusConflict, "bonus_already_decided"},
	{payroll.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{payroll.ErrPayslipLocked, http.StatusConflict, "payslip_locked"},
	{bankexport.ErrConcurrentExport, http.StatusConflict, "concurrent_export"},
	{bankexport.ErrTampered, http.StatusConflict, "bank_file_tampered"},
	{vend.ErrAlreadyAllocated, http.StatusConflict, "already_allocated"},
	{vend.ErrNotFailed, http.StatusConflict, "deduction_not_failed"},
	{xero.ErrAlreadyPosted, http.StatusConflict, "pay_run_posted"},
	{xero.ErrNotConnected, http.StatusConflict, "xero_not_connected"},
	{vend.ErrNotConfigured, http.StatusConflict, "vend_not_configured"},

	{payroll.ErrInvalidPeriod, http.StatusUnprocessableEntity, "invalid_period"},
	{money.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{bankexport.ErrNothingToExport, http.StatusUnprocessableEntity, "nothing_to_export"},
	{bankexport.ErrNoFromAccount, http.StatusUnprocessableEntity, "from_account_missing"},
	{vend.ErrNoVendCustomer, http.StatusUnprocessableEntity, "no_vend_customer"},
	{vend.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{vend.ErrNoOpenSales, http.StatusUnprocessableEntity, "no_open_sales"},
	{vend.ErrNothingApplied, http.StatusUnprocessableEntity, "nothing_applied"},
	{xero.ErrNoPayslips, http.StatusUnprocessableEntity, "no_payslips"},
	{xero.ErrNoBankPayments, http.StatusUnprocessableEntity, "no_bank_payments"},
	{xero.ErrMissingRateCode, http.StatusUnprocessableEntity, "earnings_rate_missing"},
	{xero.ErrInvalidState, http.StatusBadRequest, "invalid_oauth_state"},
	{jobs.ErrUnknownJob, http.StatusNotFound, "unknown_job"},
	{jobs.ErrQueueFull, http.StatusServiceUnavailable, "job_queue_full"},

	{vend.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// Status maps a service error to an HTTP status and a stable error code.
func Status(err error) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	var apiErr *httpx.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// FailError renders err. Validation errors carry their field list; unmapped
// errors are logged and hidden from the client.
func FailError(w http.ResponseWriter, err error, requestID string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		FailWithDetails(w, http.StatusUnprocessableEntity, "validation_error", "payload validation failed", map[string]any{"fields": verr.Fields}, requestID)
		return
	}
	status, code := Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "requestId", requestID, "err", err)
		Fail(w, status, code, "internal error", requestID)
		return
	}
	if status == http.StatusBadGateway {
		slog.Warn("upstream call failed", "requestId", requestID, "err", err)
	}
	Fail(w, status, code, err.Error(), requestID)
}
