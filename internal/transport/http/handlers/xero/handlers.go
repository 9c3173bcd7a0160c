package xerohandler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/domain/xero"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	ConnectURL(ctx context.Context, actor auth.Actor) (string, error)
	Callback(ctx context.Context, state, code string) error
	CreatePayRun(ctx context.Context, actor auth.Actor, period payroll.Period, paymentDate time.Time) (xero.PayRunResult, error)
	PostPayRun(ctx context.Context, actor auth.Actor, id int64) (xero.PayRunRecord, error)
	CreateBatchPayment(ctx context.Context, actor auth.Actor, period payroll.Period) (xero.BatchRecord, error)
	ListPayRuns(ctx context.Context, actor auth.Actor, limit int) ([]xero.PayRunRecord, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

type payRunRequest struct {
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
	PaymentDate string `json:"paymentDate"`
}

type batchRequest struct {
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/xero", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermXeroSync))
		r.Get("/connect", h.handleConnect)
		r.Get("/pay-runs", h.handleListPayRuns)
		r.Post("/pay-runs", h.handleCreatePayRun)
		r.Post("/pay-runs/{payRunID}/post", h.handlePostPayRun)
		r.Post("/batch-payments", h.handleBatchPayment)
	})
}

// RegisterPublicRoutes mounts the OAuth redirect target. Xero calls it
// without a bearer token; the one-time state ties it back to the user.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/xero/callback", h.handleCallback)
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	url, err := h.Service.ConnectURL(r.Context(), actor)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"url": url}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		api.Fail(w, http.StatusBadRequest, "xero_denied", reason, middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("state", q.Get("state"), "state is required")
	v.Required("code", q.Get("code"), "code is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	if err := h.Service.Callback(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]bool{"connected": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePayRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload payRunRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	period := v.Period("periodStart", payload.PeriodStart, "periodEnd", payload.PeriodEnd)
	paymentDate := period.End
	if strings.TrimSpace(payload.PaymentDate) != "" {
		paymentDate, _ = v.Date("paymentDate", payload.PaymentDate)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	res, err := h.Service.CreatePayRun(r.Context(), actor, period, paymentDate)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, res, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePostPayRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, ok := shared.PathID(w, r, "payRunID")
	if !ok {
		return
	}
	record, err := h.Service.PostPayRun(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBatchPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload batchRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	period := v.Period("periodStart", payload.PeriodStart, "periodEnd", payload.PeriodEnd)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	record, err := h.Service.CreateBatchPayment(r.Context(), actor, period)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPayRuns(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	page := v.Page(r, 20, 100)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.ListPayRuns(r.Context(), actor, page.Limit)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}
