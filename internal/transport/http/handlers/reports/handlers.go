package reportshandler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/domain/reports"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type Service interface {
	Register(ctx context.Context, actor auth.Actor, period payroll.Period) ([]byte, error)
	Dashboard(ctx context.Context, actor auth.Actor) (reports.Dashboard, error)
	JobRuns(ctx context.Context, actor auth.Actor, filter reports.JobRunFilter, limit, offset int) ([]reports.JobRun, int, error)
	JobRun(ctx context.Context, actor auth.Actor, id string) (reports.JobRun, error)
}

// Jobs starts registered background jobs on demand.
type Jobs interface {
	Trigger(jobType string) error
	Types() []string
}

type Handler struct {
	Service Service
	Jobs    Jobs
}

func NewHandler(service Service, jobs Jobs) *Handler {
	return &Handler{Service: service, Jobs: jobs}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermReportsRead))
		r.Get("/register.xlsx", h.handleRegister)
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/job-runs", h.handleJobRuns)
		r.Get("/job-runs/{runID}", h.handleJobRun)
	})
	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermSystemAdmin))
		r.Get("/", h.handleJobTypes)
		r.Post("/{jobType}/run", h.handleTrigger)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	period := v.Period("periodStart", q.Get("periodStart"), "periodEnd", q.Get("periodEnd"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	data, err := h.Service.Register(r.Context(), actor, period)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	filename := fmt.Sprintf("payroll_register_%s_%s.xlsx", period.Start.Format("20060102"), period.End.Format("20060102"))
	api.File(w, xlsxContentType, filename, data)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	d, err := h.Service.Dashboard(r.Context(), actor)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	filter := reports.JobRunFilter{JobType: q.Get("jobType"), Status: q.Get("status")}
	if raw := q.Get("startedFrom"); raw != "" {
		if from, ok := v.Date("startedFrom", raw); ok {
			filter.StartedFrom = &from
		}
	}
	if raw := q.Get("startedTo"); raw != "" {
		if to, ok := v.Date("startedTo", raw); ok {
			filter.StartedTo = &to
		}
	}
	v.Enum("status", filter.Status, []string{"running", "completed", "failed"}, "status must be running, completed or failed")
	page := v.Page(r, 50, 200)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	items, total, err := h.Service.JobRuns(r.Context(), actor, filter, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleJobRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	run, err := h.Service.JobRun(r.Context(), actor, chi.URLParam(r, "runID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleJobTypes(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Jobs.Types(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	jobType := chi.URLParam(r, "jobType")
	if err := h.Jobs.Trigger(jobType); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: map[string]string{"jobType": jobType, "status": "queued"}, RequestID: middleware.GetRequestID(r.Context())})
}
