package authhandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/auth"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	Login(ctx context.Context, email, password string) (string, auth.Actor, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string     `json:"token"`
	Actor auth.Actor `json:"actor"`
}

// RegisterRoutes mounts the public routes. The caller wraps login with the
// per-email rate limiter.
func (h *Handler) RegisterRoutes(r chi.Router, login func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.With(login).Post("/login", h.HandleLogin)
	})
	r.With(middleware.RequireAuth).Get("/me", h.handleMe)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	token, actor, err := h.Service.Login(r.Context(), strings.ToLower(strings.TrimSpace(payload.Email)), payload.Password)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, loginResponse{Token: token, Actor: actor}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	api.Success(w, map[string]any{"actor": actor, "permissions": auth.RolePermissions[actor.Role]}, middleware.GetRequestID(r.Context()))
}
