package vendhandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/vend"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, actor auth.Actor, in vend.Deduction) (vend.Deduction, error)
	Get(ctx context.Context, actor auth.Actor, id int64) (vend.Deduction, error)
	AllocateDeduction(ctx context.Context, actor auth.Actor, id int64) (vend.Allocation, error)
	AllocateAllForCustomer(ctx context.Context, actor auth.Actor, customerID string) (vend.BatchStats, error)
	AllocateAllPending(ctx context.Context, actor auth.Actor) (vend.BatchStats, error)
	RetryFailed(ctx context.Context, actor auth.Actor, id int64) (vend.Allocation, error)
	RetryAllFailed(ctx context.Context, actor auth.Actor) (vend.BatchStats, error)
	AllocateToPayRun(ctx context.Context, actor auth.Actor, payRunID string, lines []vend.PayRunLine) (vend.PayRunResult, error)
	Failed(ctx context.Context, actor auth.Actor) ([]vend.Deduction, error)
	History(ctx context.Context, actor auth.Actor, customerID string, limit int) ([]vend.LogEntry, error)
	Stats(ctx context.Context, actor auth.Actor) (map[vend.Status]vend.StatusStats, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

type deductionRequest struct {
	StaffID int64       `json:"staffId"`
	Amount  money.Cents `json:"amount"`
}

type payRunRequest struct {
	Lines []vend.PayRunLine `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/vend", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermVendAllocate))
		r.Post("/deductions", h.handleCreate)
		r.Get("/deductions/failed", h.handleFailed)
		r.Get("/deductions/{deductionID}", h.handleGet)
		r.Post("/deductions/{deductionID}/allocate", h.allocation(h.Service.AllocateDeduction))
		r.Post("/deductions/{deductionID}/retry", h.allocation(h.Service.RetryFailed))
		r.Post("/allocate-pending", h.batch(h.Service.AllocateAllPending))
		r.Post("/retry-failed", h.batch(h.Service.RetryAllFailed))
		r.Post("/customers/{customerID}/allocate", h.handleAllocateCustomer)
		r.Get("/customers/{customerID}/history", h.handleHistory)
		r.Post("/pay-runs/{payRunID}/allocate", h.handleAllocatePayRun)
		r.Get("/stats", h.handleStats)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload deductionRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	d, err := h.Service.Create(r.Context(), actor, vend.Deduction{StaffID: payload.StaffID, Amount: payload.Amount})
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, ok := shared.PathID(w, r, "deductionID")
	if !ok {
		return
	}
	d, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleFailed(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	items, err := h.Service.Failed(r.Context(), actor)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

// allocation runs a single-deduction operation. An attempt that applied
// nothing is still a 200; the Allocation carries the failure.
func (h *Handler) allocation(fn func(context.Context, auth.Actor, int64) (vend.Allocation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.Actor(w, r)
		if !ok {
			return
		}
		id, ok := shared.PathID(w, r, "deductionID")
		if !ok {
			return
		}
		res, err := fn(r.Context(), actor, id)
		if err != nil {
			api.FailError(w, err, middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, res, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) batch(fn func(context.Context, auth.Actor) (vend.BatchStats, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.Actor(w, r)
		if !ok {
			return
		}
		stats, err := fn(r.Context(), actor)
		if err != nil {
			api.FailError(w, err, middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, stats, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) handleAllocateCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	stats, err := h.Service.AllocateAllForCustomer(r.Context(), actor, chi.URLParam(r, "customerID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	page := v.Page(r, 50, 200)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.History(r.Context(), actor, chi.URLParam(r, "customerID"), page.Limit)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAllocatePayRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload payRunRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	res, err := h.Service.AllocateToPayRun(r.Context(), actor, chi.URLParam(r, "payRunID"), payload.Lines)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	stats, err := h.Service.Stats(r.Context(), actor)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}
