// Package apiserver provides the JSON API HTTP server
package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mealforge/v1/internal/infrastructure/config"
	"github.com/mealforge/v1/internal/infrastructure/http/handlers"
	"github.com/mealforge/v1/internal/infrastructure/http/middleware"
	"github.com/mealforge/v1/internal/ports/inbound"
)

// HealthCheck probes one dependency; nil means healthy.
type HealthCheck func(ctx context.Context) error

// Server is the JSON API HTTP server
type Server struct {
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
	router  *chi.Mux
	planner inbound.PlannerService
	checks  map[string]HealthCheck
}

// NewServer creates a new API server instance
func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	planner inbound.PlannerService,
	checks map[string]HealthCheck,
) *Server {
	s := &Server{
		config:  cfg,
		logger:  log,
		planner: planner,
		checks:  checks,
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s
}

// setupRoutes configures the JSON API routes
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security())
	if s.config.Server.EnableCORS {
		r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	}
	r.Use(chimiddleware.Timeout(s.config.Server.WriteTimeout))
	r.Use(chimiddleware.Compress(5))

	r.Get(s.config.Monitoring.HealthCheckPath, s.handleHealth)
	r.Get(s.config.Monitoring.ReadinessPath, s.handleReady)
	if s.config.Monitoring.EnableMetrics {
		r.Method(http.MethodGet, s.config.Monitoring.MetricsPath, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JSONOnly())

		h := handlers.NewMealPlanHandlers(s.planner, s.logger)
		r.Route("/mealplans", func(r chi.Router) {
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
			r.Post("/{id}/regenerate", h.RegeneratePlan)
		})
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.server.Addr),
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth reports liveness only
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   s.config.App.Name,
		"version":   s.config.App.Version,
		"timestamp": time.Now().Unix(),
	})
}

// handleReady probes the registered dependency checks
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	overall := "ready"
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			overall = "not ready"
			continue
		}
		results[name] = "ok"
	}

	s.writeStatus(w, status, map[string]interface{}{
		"status": overall,
		"checks": results,
	})
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
