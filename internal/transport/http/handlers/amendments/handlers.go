package amendmentshandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/amendment"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/deputy"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, actor auth.Actor, in amendment.Amendment) (amendment.Amendment, error)
	Approve(ctx context.Context, actor auth.Actor, id int64) (amendment.ApprovalResult, error)
	Decline(ctx context.Context, actor auth.Actor, id int64, reason string) (amendment.Amendment, error)
	History(ctx context.Context, id int64) ([]amendment.HistoryEntry, error)
	ListPending(ctx context.Context, limit, offset int) ([]amendment.Amendment, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

type createRequest struct {
	StaffID       int64                `json:"staffId"`
	PayPeriodID   int64                `json:"payPeriodId"`
	OutletID      int64                `json:"outletId"`
	OriginalStart time.Time            `json:"originalStart"`
	OriginalEnd   time.Time            `json:"originalEnd"`
	NewStart      time.Time            `json:"newStart"`
	NewEnd        time.Time            `json:"newEnd"`
	Reason        string               `json:"reason"`
	DeputyShifts  []deputy.PickedShift `json:"deputyShifts"`
}

type declineRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/amendments", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAmendmentsWrite)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermAmendmentsReview)).Get("/pending", h.handlePending)
		r.With(middleware.RequirePermission(auth.PermAmendmentsReview)).Post("/{amendmentID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermAmendmentsReview)).Post("/{amendmentID}/decline", h.handleDecline)
		r.With(middleware.RequirePermission(auth.PermAmendmentsReview)).Get("/{amendmentID}/history", h.handleHistory)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload createRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	created, err := h.Service.Create(r.Context(), actor, amendment.Amendment{
		StaffID:       payload.StaffID,
		PayPeriodID:   payload.PayPeriodID,
		OutletID:      payload.OutletID,
		OriginalStart: payload.OriginalStart,
		OriginalEnd:   payload.OriginalEnd,
		NewStart:      payload.NewStart,
		NewEnd:        payload.NewEnd,
		Reason:        payload.Reason,
		DeputyShifts:  payload.DeputyShifts,
	})
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	v := shared.NewValidator()
	page := v.Page(r, 100, 500)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.ListPending(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, ok := shared.PathID(w, r, "amendmentID")
	if !ok {
		return
	}
	result, err := h.Service.Approve(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	id, ok := shared.PathID(w, r, "amendmentID")
	if !ok {
		return
	}
	var payload declineRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	declined, err := h.Service.Decline(r.Context(), actor, id, payload.Reason)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, declined, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r, "amendmentID")
	if !ok {
		return
	}
	entries, err := h.Service.History(r.Context(), id)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}
