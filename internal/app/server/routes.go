package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hrpay/internal/domain/auth"
	"hrpay/internal/transport/http/api"
	amendmentshandler "hrpay/internal/transport/http/handlers/amendments"
	audithandler "hrpay/internal/transport/http/handlers/audit"
	authhandler "hrpay/internal/transport/http/handlers/auth"
	bankexportshandler "hrpay/internal/transport/http/handlers/bankexports"
	bonuseshandler "hrpay/internal/transport/http/handlers/bonuses"
	notificationshandler "hrpay/internal/transport/http/handlers/notifications"
	payrollhandler "hrpay/internal/transport/http/handlers/payroll"
	reportshandler "hrpay/internal/transport/http/handlers/reports"
	staffhandler "hrpay/internal/transport/http/handlers/staff"
	vendhandler "hrpay/internal/transport/http/handlers/vend"
	xerohandler "hrpay/internal/transport/http/handlers/xero"
	"hrpay/internal/transport/http/middleware"
)

// Pinger reports database readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func routes(app *App, s *services, logger *slog.Logger) http.Handler {
	cfg := app.Config

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.CleanPath)
	router.Use(chimw.Heartbeat("/healthz"))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(app.Metrics))
	}
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, s.users))

	router.Get("/readyz", readyHandler(app.DB))
	if cfg.MetricsEnabled {
		router.With(middleware.RequirePermission(auth.PermSystemAdmin)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, app.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		loginLimit := middleware.RateLimit(s.loginLimiter, "login", loginWindow, middleware.AuthEmailOrIPKey("email"))
		authhandler.NewHandler(s.auth).RegisterRoutes(r, loginLimit)
		xerohandler.NewHandler(s.xero).RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.apiLimiter, "api", apiWindow, middleware.ActorOrIPKey))
			r.Use(middleware.Idempotency(middleware.NewIdempotencyStore(app.DB)))

			staffhandler.NewHandler(s.directory).RegisterRoutes(r)
			payrollhandler.NewHandler(s.payroll).RegisterRoutes(r)
			amendmentshandler.NewHandler(s.amendments).RegisterRoutes(r)
			bonuseshandler.NewHandler(s.bonuses).RegisterRoutes(r)
			bankexportshandler.NewHandler(s.bank).RegisterRoutes(r)
			vendhandler.NewHandler(s.vend).RegisterRoutes(r)
			xerohandler.NewHandler(s.xero).RegisterRoutes(r)
			reportshandler.NewHandler(s.reports, s.jobs).RegisterRoutes(r)
			audithandler.NewHandler(s.audit).RegisterRoutes(r)
			notificationshandler.NewHandler(s.notifications).RegisterRoutes(r)
		})
	})

	return router
}

func readyHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
