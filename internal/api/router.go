// Package api provides the HTTP API layer for the resource leveling server.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"taskboard-leveler/internal/api/handlers"
	"taskboard-leveler/internal/api/response"
	"taskboard-leveler/internal/config"
	"taskboard-leveler/internal/leveling"
	"taskboard-leveler/internal/logging"
	"taskboard-leveler/internal/ratelimit"
)

// Router represents the main API router
type Router struct {
	config  *config.Config
	mux     *chi.Mux
	service *leveling.Service
	limiter ratelimit.Limiter
	logger  logging.Logger
	version string
}

// NewRouter creates a new API router with middleware and routes. The limiter
// is optional.
func NewRouter(cfg *config.Config, service *leveling.Service, limiter ratelimit.Limiter, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	r := &Router{
		config:  cfg,
		mux:     chi.NewRouter(),
		service: service,
		limiter: limiter,
		logger:  logger.WithComponent("api"),
		version: "1.0.0",
	}

	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.mux
}

// setupMiddleware configures the middleware stack
func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(chimiddleware.RealIP)
	r.mux.Use(chimiddleware.RequestID)
	r.mux.Use(chimiddleware.Timeout(60 * time.Second))
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
	r.mux.Use(r.requestLogger)

	if r.limiter != nil {
		r.mux.Use(ratelimit.Middleware(r.limiter, r.logger))
	}
}

// setupRoutes configures the API routes
func (r *Router) setupRoutes() {
	h := handlers.NewLevelingHandler(r.service)

	r.mux.Get("/health", r.healthCheck)

	r.mux.Route("/api/v1", func(api chi.Router) {
		api.Route("/tasks/{taskID}", func(tasks chi.Router) {
			tasks.Post("/analyze", h.AnalyzeTask)
			tasks.Post("/suggest", h.SuggestTask)
		})

		api.Route("/teams/{boardID}", func(teams chi.Router) {
			teams.Get("/suggestions", h.TeamSuggestions)
			teams.Get("/report", h.TeamReport)
			teams.Post("/balance", h.BalanceTeam)
		})

		api.Route("/suggestions/{suggestionID}", func(suggs chi.Router) {
			suggs.Post("/accept", h.AcceptSuggestion)
			suggs.Post("/reject", h.RejectSuggestion)
		})

		api.Post("/events/assignment-changed", h.AssignmentChanged)
	})
}

// healthCheck reports service liveness.
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	response.WriteSuccess(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": r.version,
	})
}

// requestLogger logs each request with its duration and status.
func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		r.logger.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
