package payrollhandler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	Calculate(ctx context.Context, actor auth.Actor, staffID int64, period payroll.Period) (payroll.Payslip, error)
	CalculateAll(ctx context.Context, actor auth.Actor, period payroll.Period) (payroll.BatchResult, error)
	Review(ctx context.Context, actor auth.Actor, id int64) (payroll.Payslip, error)
	Approve(ctx context.Context, actor auth.Actor, id int64) (payroll.Payslip, error)
	Revert(ctx context.Context, actor auth.Actor, id int64) (payroll.Payslip, error)
	Get(ctx context.Context, actor auth.Actor, id int64) (payroll.Payslip, error)
	List(ctx context.Context, actor auth.Actor, f payroll.ListFilter) ([]payroll.Payslip, int, error)
	PayslipPDF(ctx context.Context, actor auth.Actor, id int64) ([]byte, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

type calculateRequest struct {
	StaffID     int64  `json:"staffId" validate:"gt=0"`
	PeriodStart string `json:"periodStart" validate:"required"`
	PeriodEnd   string `json:"periodEnd" validate:"required"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payslips", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollCalculate)).Post("/calculate", h.handleCalculate)
		r.With(middleware.RequirePermission(auth.PermPayrollCalculate)).Post("/calculate-all", h.handleCalculateAll)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/{payslipID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermPayrollRead)).Get("/{payslipID}/pdf", h.handlePDF)
		r.With(middleware.RequirePermission(auth.PermPayrollApprove)).Post("/{payslipID}/review", h.transition(h.Service.Review))
		r.With(middleware.RequirePermission(auth.PermPayrollApprove)).Post("/{payslipID}/approve", h.transition(h.Service.Approve))
		r.With(middleware.RequirePermission(auth.PermPayrollApprove)).Post("/{payslipID}/revert", h.transition(h.Service.Revert))
	})
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload calculateRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	period := v.Period("periodStart", payload.PeriodStart, "periodEnd", payload.PeriodEnd)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	payslip, err := h.Service.Calculate(r.Context(), actor, payload.StaffID, period)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, payslip, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalculateAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload calculateRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	period := v.Period("periodStart", payload.PeriodStart, "periodEnd", payload.PeriodEnd)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	result, err := h.Service.CalculateAll(r.Context(), actor, period)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	var filter payroll.ListFilter
	if q.Get("periodStart") != "" || q.Get("periodEnd") != "" {
		period := v.Period("periodStart", q.Get("periodStart"), "periodEnd", q.Get("periodEnd"))
		filter.PeriodStart, filter.PeriodEnd = period.Start, period.End
	}
	v.Enum("status", q.Get("status"), []string{
		string(payroll.StatusCalculated), string(payroll.StatusReviewed),
		string(payroll.StatusApproved), string(payroll.StatusExported),
	}, "status is not a payslip status")
	page := v.Page(r, 100, 500)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	filter.StaffID = shared.QueryInt64(r, "staffId")
	filter.Status = payroll.Status(q.Get("status"))
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	items, total, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, ok := shared.PathID(w, r, "payslipID")
	if !ok {
		return
	}
	payslip, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, payslip, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, ok := shared.PathID(w, r, "payslipID")
	if !ok {
		return
	}
	data, err := h.Service.PayslipPDF(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.File(w, "application/pdf", fmt.Sprintf("payslip_%d.pdf", id), data)
}

func (h *Handler) transition(fn func(context.Context, auth.Actor, int64) (payroll.Payslip, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.Actor(w, r)
		if !ok {
			return
		}
		id, ok := shared.PathID(w, r, "payslipID")
		if !ok {
			return
		}
		payslip, err := fn(r.Context(), actor, id)
		if err != nil {
			api.FailError(w, err, middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, payslip, middleware.GetRequestID(r.Context()))
	}
}
