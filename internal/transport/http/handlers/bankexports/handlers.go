package bankexportshandler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/bankexport"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	Export(ctx context.Context, actor auth.Actor, periodEnd time.Time) (bankexport.Result, error)
	VerifyFileIntegrity(ctx context.Context, actor auth.Actor, id string) (bankexport.Verification, error)
	Open(ctx context.Context, actor auth.Actor, id string) (bankexport.Export, []byte, error)
	List(ctx context.Context, actor auth.Actor, limit, offset int) ([]bankexport.Export, error)
}

type Handler struct {
	Service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service}
}

type exportRequest struct {
	PeriodEnd string `json:"periodEnd"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bank-exports", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermPayrollExport))
		r.Post("/", h.handleExport)
		r.Get("/", h.handleList)
		r.Get("/{exportID}/verify", h.handleVerify)
		r.Get("/{exportID}/download", h.handleDownload)
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var payload exportRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	periodEnd, _ := v.Date("periodEnd", payload.PeriodEnd)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	res, err := h.Service.Export(r.Context(), actor, periodEnd)
	if errors.Is(err, bankexport.ErrNothingToExport) && len(res.Skipped) > 0 {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "nothing_to_export", err.Error(),
			map[string]any{"skipped": res.Skipped}, middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, res, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	page := v.Page(r, 50, 200)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.List(r.Context(), actor, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	v, err := h.Service.VerifyFileIntegrity(r.Context(), actor, chi.URLParam(r, "exportID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, v, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	record, data, err := h.Service.Open(r.Context(), actor, chi.URLParam(r, "exportID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.File(w, "text/csv", record.Filename, data)
}
