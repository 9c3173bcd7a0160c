package notificationshandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/notifications"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, staffID int64, limit, offset int) ([]notifications.Notification, error)
	Count(ctx context.Context, staffID int64) (int, error)
	MarkRead(ctx context.Context, staffID, notificationID int64) error
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleList)
		r.Post("/{notificationID}/read", h.handleMarkRead)
	})
}

func (h *Handler) staffID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return 0, false
	}
	if actor.StaffID == 0 {
		api.Fail(w, http.StatusForbidden, "not_staff", "notifications are only available to staff accounts", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return actor.StaffID, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	staffID, ok := h.staffID(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	page := v.Page(r, 100, 500)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	total, err := h.Service.Count(r.Context(), staffID)
	if err != nil {
		slog.Warn("notification count failed", "err", err)
	}

	items, err := h.Service.List(r.Context(), staffID, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	staffID, ok := h.staffID(w, r)
	if !ok {
		return
	}
	id, ok := shared.PathID(w, r, "notificationID")
	if !ok {
		return
	}
	if err := h.Service.MarkRead(r.Context(), staffID, id); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"status": "read"}, middleware.GetRequestID(r.Context()))
}
