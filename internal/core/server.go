// Package core provides the API chassis for the climarisk engine. It owns the
// chi router and enforces cross-cutting concerns -- logging, observability,
// panic recovery, and error handling -- before requests reach domain
// handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"climarisk/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
type MetricsCollector interface {
	// RecordRequest records request latency and count for one completed
	// request.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts one domain handler group onto the router. The
// indirection keeps core free of handler imports.
type RouteRegistrar func(chi.Router)

// Server encapsulates the API dependencies, allowing injection during
// testing and distinct configuration per environment.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are executed concurrently by GET /health.
	HealthProbes []HealthProbe

	// CacheStats, when set, is invoked by HandleHealth to include cache
	// statistics in the health payload.
	CacheStats CacheStatsFunc

	// RouteRegistrars are mounted under the API root by MountRoutes.
	RouteRegistrars []RouteRegistrar

	// MetricsHandler, when set, is served at GET /metrics.
	MetricsHandler http.Handler

	router *chi.Mux

	// closers run during Shutdown, last registered first.
	closers []func() error
}

// NewServer initializes dependencies and prepares the server for route
// mounting. It fails fast on missing critical configuration. The caller
// mounts routes via MountRoutes after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup function invoked during Shutdown.
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Shutdown runs the registered cleanup functions in reverse order and
// reports the first failure after attempting all of them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.Logger.Error("shutdown cleanup failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return firstErr
}
