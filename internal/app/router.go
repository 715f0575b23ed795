package app

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quitflow/internal/app/observability"
	"quitflow/internal/plan"
	"quitflow/internal/questionnaire"
	"quitflow/internal/report"
)

// NewRouter wires the HTTP surface: session lifecycle, plan lookup,
// review export, health and metrics. dbConn may be nil for the memory
// ledger backend.
func NewRouter(cfg Config, reg *SessionRegistry, planSvc *plan.Service, reportSvc *report.Service, dbConn *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(dbConn)
	r.Use(collector.Middleware)

	limiter := NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute)
	r.Use(RateLimitMiddleware(limiter))
	r.Use(CSRFMiddleware(cfg.CSRFEnforced))

	sessionHandler := questionnaire.NewHandler(reg)
	planHandler := plan.NewHandler(planSvc)
	reportHandler := report.NewHandler(reportSvc, reg)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/plan", planHandler.GetPlan)

		api.Route("/sessions", func(s chi.Router) {
			s.Post("/", sessionHandler.CreateSession)

			s.Route("/{id}", func(one chi.Router) {
				one.Get("/", sessionHandler.GetSession)
				one.Delete("/", sessionHandler.DeleteSession)
				one.Post("/answers", sessionHandler.SubmitAnswers)
				one.Post("/back", sessionHandler.GoBack)
				one.Post("/resume", sessionHandler.ResumeFromReview)
				one.Post("/complete", sessionHandler.Complete)
				one.Post("/restart", sessionHandler.Restart)
				one.Post("/refresh", sessionHandler.Refresh)
				one.Get("/review", sessionHandler.Review)
				one.Get("/review/export", reportHandler.ExportReview)
			})
		})
	})

	return r
}
