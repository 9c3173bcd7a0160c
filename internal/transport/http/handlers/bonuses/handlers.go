package bonuseshandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/bonus"
	"hrpay/internal/domain/money"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	Summary(ctx context.Context, actor auth.Actor, staffID int64, start, end time.Time) (bonus.Summary, error)
	CreateMonthly(ctx context.Context, actor auth.Actor, in bonus.MonthlyBonus) (bonus.MonthlyBonus, error)
	ApproveMonthly(ctx context.Context, actor auth.Actor, id int64) (bonus.MonthlyBonus, error)
	DeclineMonthly(ctx context.Context, actor auth.Actor, id int64) (bonus.MonthlyBonus, error)
	ListMonthly(ctx context.Context, staffID int64, start, end time.Time) ([]bonus.MonthlyBonus, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

type monthlyRequest struct {
	StaffID     int64       `json:"staffId"`
	Month       string      `json:"month"`
	Type        bonus.Type  `json:"type"`
	Amount      money.Cents `json:"amount"`
	Description string      `json:"description"`
}

type summaryResponse struct {
	bonus.Summary
	Total money.Cents `json:"total"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bonuses", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermBonusesRead)).Get("/summary", h.handleSummary)
		r.With(middleware.RequirePermission(auth.PermBonusesWrite)).Get("/monthly", h.handleListMonthly)
		r.With(middleware.RequirePermission(auth.PermBonusesWrite)).Post("/monthly", h.handleCreateMonthly)
		r.With(middleware.RequirePermission(auth.PermBonusesWrite)).Post("/monthly/{bonusID}/approve", h.decide(true))
		r.With(middleware.RequirePermission(auth.PermBonusesWrite)).Post("/monthly/{bonusID}/decline", h.decide(false))
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	period := v.Period("start", q.Get("start"), "end", q.Get("end"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	staffID := shared.QueryInt64(r, "staffId")
	if staffID == 0 {
		staffID = actor.StaffID
	}

	summary, err := h.Service.Summary(r.Context(), actor, staffID, period.Start, period.End)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, summaryResponse{Summary: summary, Total: summary.Total()}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := shared.NewValidator()
	period := v.Period("start", q.Get("start"), "end", q.Get("end"))
	staffID := shared.QueryInt64(r, "staffId")
	if staffID <= 0 {
		v.Add("staffId", "gt", "staffId must be a positive integer")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.ListMonthly(r.Context(), staffID, period.Start, period.End)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateMonthly(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload monthlyRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	month, err := parseMonth(payload.Month)
	if err != nil {
		v := shared.NewValidator()
		v.Add("month", "date", "month must be YYYY-MM or YYYY-MM-DD")
		v.Reject(w, middleware.GetRequestID(r.Context()))
		return
	}

	created, err := h.Service.CreateMonthly(r.Context(), actor, bonus.MonthlyBonus{
		StaffID:     payload.StaffID,
		Month:       month,
		Type:        payload.Type,
		Amount:      payload.Amount,
		Description: payload.Description,
	})
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) decide(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.Actor(w, r)
		if !ok {
			return
		}
		id, ok := shared.PathID(w, r, "bonusID")
		if !ok {
			return
		}
		decide := h.Service.DeclineMonthly
		if approve {
			decide = h.Service.ApproveMonthly
		}
		b, err := decide(r.Context(), actor, id)
		if err != nil {
			api.FailError(w, err, middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, b, middleware.GetRequestID(r.Context()))
	}
}

func parseMonth(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01", raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
