// Package main is the entry point for the climarisk API server.
//
// It loads configuration, connects the database pool, builds the inference
// pipeline (archive accessor, classifier, cache manager, prediction service),
// wires the HTTP chassis, and serves until interrupted.
//
// In model mode the process refuses to start unless trained classifier
// artifacts are present in the database. Empirical mode has no such
// prerequisite.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"climarisk/internal/api/handlers"
	"climarisk/internal/cache"
	"climarisk/internal/classify"
	"climarisk/internal/config"
	"climarisk/internal/core"
	"climarisk/internal/db"
	"climarisk/internal/engine"
	"climarisk/internal/external"
	"climarisk/internal/history"
	"climarisk/internal/observability"
	"climarisk/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("climarisk API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"classifier_mode", cfg.Engine.ClassifierMode,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	// Repositories share the pool through the DBTX interface.
	obsRepo := db.NewObservationRepository(pool)
	cacheRepo := db.NewPredictionCacheRepository(pool)
	modelRepo := db.NewModelRepository(pool)
	analyticsRepo := db.NewAnalyticsRepository(pool)

	// External collaborators.
	archiveHTTP := &http.Client{Timeout: cfg.Archive.Timeout}
	archive := external.NewArchiveClient(archiveHTTP, cfg.Archive, logger)
	geocoder := external.NewGeocoder(&http.Client{Timeout: cfg.Geocode.Timeout}, cfg.Geocode, logger)

	// Inference pipeline.
	classifier, err := newClassifier(ctx, cfg.Engine, modelRepo)
	if err != nil {
		pool.Close()
		return fmt.Errorf("initializing classifier: %w", err)
	}

	accessor := history.NewStoreAccessor(obsRepo, archive, cfg.Engine, cfg.Archive, nil, logger)
	cacheManager := cache.NewManager(cacheRepo, cfg.Engine.CacheTTL, nil, logger)
	service := engine.NewService(accessor, classifier, cacheManager, cfg.Engine, nil, logger)
	analyzer := engine.NewAnalyzer(service, accessor, cfg.Engine, logger)

	metrics := observability.NewMetrics()
	metrics.SetClassifierMode(cfg.Engine.ClassifierMode)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics
	srv.MetricsHandler = metrics.Handler()
	srv.HealthProbes = []core.HealthProbe{
		&databaseProbe{pool: pool},
		&archiveProbe{client: archiveHTTP, baseURL: cfg.Archive.BaseURL},
	}
	srv.CacheStats = func(ctx context.Context) any {
		return cacheManager.Stats(ctx)
	}
	srv.OnShutdown(func() error {
		pool.Close()
		return nil
	})

	predictionHandler := handlers.NewPredictionHandler(
		service,
		analyzer,
		geocoder,
		analyticsRepo,
		srv.Validator,
		nil,
		logger,
	)
	modelHandler := handlers.NewModelHandler(modelRepo, service, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsRepo, nil, logger)
	activityHandler := handlers.NewActivityHandler()

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		predictionHandler.RegisterRoutes,
		modelHandler.RegisterRoutes,
		analyticsHandler.RegisterRoutes,
		activityHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPool builds the pgx connection pool with the configured tuning
// parameters and verifies connectivity before returning.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// newClassifier selects the probability-estimation strategy. Model mode is
// fail-fast: missing or undecodable artifacts abort startup rather than
// silently degrading to empirical estimates.
func newClassifier(ctx context.Context, cfg config.EngineConfig, models *db.ModelRepository) (classify.Classifier, error) {
	switch types.ClassifierMode(cfg.ClassifierMode) {
	case types.ClassifierEmpirical:
		return classify.NewEmpirical(), nil
	case types.ClassifierModel:
		artifacts, err := models.ListArtifacts(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading model artifacts: %w", err)
		}
		if len(artifacts) == 0 {
			return nil, fmt.Errorf("classifier mode is %q but no model artifacts are stored", cfg.ClassifierMode)
		}
		return classify.NewModel(artifacts)
	default:
		return nil, fmt.Errorf("unknown classifier mode %q", cfg.ClassifierMode)
	}
}

// runHTTPServer starts the server in standard HTTP mode with graceful
// shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Release server resources (database pool).
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
