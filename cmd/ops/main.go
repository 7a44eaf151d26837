// Package main implements the ops CLI for climarisk maintenance tasks:
// sweeping the prediction cache, importing trained model artifacts, and
// backfilling observations from the climate archive.
//
// Usage:
//
//	go run ./cmd/ops --task=sweep-cache
//	go run ./cmd/ops --task=import-model --file=models.json
//	go run ./cmd/ops --task=backfill --lat=40.71 --lon=-74.01 --start=2010-01-01 --end=2024-12-31
//	go run ./cmd/ops --list
//
// The tool reads DATABASE_URL and the archive settings from environment
// variables (or a .env file via godotenv). Importing model artifacts
// invalidates the prediction cache so stale results are never served against
// new model versions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"climarisk/internal/classify"
	"climarisk/internal/config"
	"climarisk/internal/db"
	"climarisk/internal/external"
	"climarisk/internal/types"
)

// validTasks is the exhaustive set of maintenance tasks this tool supports.
var validTasks = map[string]string{
	"sweep-cache":  "Delete prediction cache rows whose TTL has elapsed",
	"import-model": "Store trained model artifacts from a JSON file and invalidate the cache",
	"backfill":     "Fetch daily observations from the climate archive into the observations table",
}

func main() {
	taskFlag := flag.String("task", "", "Task to execute (e.g., sweep-cache)")
	fileFlag := flag.String("file", "", "Artifact JSON file for import-model")
	latFlag := flag.Float64("lat", 0, "Latitude for backfill")
	lonFlag := flag.Float64("lon", 0, "Longitude for backfill")
	startFlag := flag.String("start", "", "Backfill start date (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "Backfill end date (YYYY-MM-DD)")
	listFlag := flag.Bool("list", false, "List all available tasks and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ops [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run climarisk maintenance tasks directly.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nUse --list to see all available tasks.\n")
	}

	flag.Parse()

	if *listFlag {
		printAvailableTasks()
		return
	}

	if *taskFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --task is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if _, ok := validTasks[*taskFlag]; !ok {
		fmt.Fprintf(os.Stderr, "error: unknown task %q; use --list\n", *taskFlag)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	switch *taskFlag {
	case "sweep-cache":
		err = runSweep(ctx, pool, logger)
	case "import-model":
		err = runImportModel(ctx, pool, *fileFlag, logger)
	case "backfill":
		err = runBackfill(ctx, pool, cfg, *latFlag, *lonFlag, *startFlag, *endFlag, logger)
	}
	if err != nil {
		logger.Error("task failed", "task", *taskFlag, "error", err)
		os.Exit(1)
	}
}

func printAvailableTasks() {
	names := make([]string, 0, len(validTasks))
	for name := range validTasks {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available tasks:")
	for _, name := range names {
		fmt.Printf("  %-14s %s\n", name, validTasks[name])
	}
}

// runSweep deletes expired prediction cache rows. Reads already filter
// expired entries, so this only reclaims storage.
func runSweep(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	repo := db.NewPredictionCacheRepository(pool)
	removed, err := repo.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	logger.Info("prediction cache swept", "removed", removed)
	return nil
}

// runImportModel reads a JSON array of artifacts, stores each as a new
// version, and invalidates the prediction cache so no stale result outlives
// the model change.
func runImportModel(ctx context.Context, pool *pgxpool.Pool, path string, logger *slog.Logger) error {
	if path == "" {
		return fmt.Errorf("--file is required for import-model")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading artifact file: %w", err)
	}

	var artifacts []*classify.Artifact
	if err := json.Unmarshal(raw, &artifacts); err != nil {
		return fmt.Errorf("parsing artifact file: %w", err)
	}
	if len(artifacts) == 0 {
		return fmt.Errorf("artifact file %s contains no artifacts", path)
	}

	modelRepo := db.NewModelRepository(pool)
	for _, a := range artifacts {
		if err := modelRepo.SaveArtifact(ctx, a); err != nil {
			return fmt.Errorf("storing artifact for %s v%d: %w", a.Category, a.Version, err)
		}
		logger.Info("model artifact stored",
			"category", string(a.Category),
			"version", a.Version,
			"accuracy", a.Accuracy,
		)
	}

	cacheRepo := db.NewPredictionCacheRepository(pool)
	if err := cacheRepo.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidating prediction cache: %w", err)
	}
	logger.Info("prediction cache invalidated", "artifacts", len(artifacts))
	return nil
}

// runBackfill fetches daily observations for one grid cell over a date span
// and upserts them into the observations table.
func runBackfill(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, lat, lon float64, startStr, endStr string, logger *slog.Logger) error {
	if startStr == "" || endStr == "" {
		return fmt.Errorf("--start and --end are required for backfill")
	}
	start, err := time.Parse(time.DateOnly, startStr)
	if err != nil {
		return fmt.Errorf("parsing --start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, endStr)
	if err != nil {
		return fmt.Errorf("parsing --end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("--end precedes --start")
	}

	loc := types.Location{Lat: lat, Lon: lon}.Rounded()
	archive := external.NewArchiveClient(&http.Client{Timeout: cfg.Archive.Timeout}, cfg.Archive, logger)

	observations, err := archive.FetchDaily(ctx, loc, start, end)
	if err != nil {
		return fmt.Errorf("fetching archive observations: %w", err)
	}
	if len(observations) == 0 {
		return fmt.Errorf("archive returned no observations for %v..%v", startStr, endStr)
	}

	obsRepo := db.NewObservationRepository(pool)
	if err := obsRepo.UpsertBatch(ctx, observations); err != nil {
		return fmt.Errorf("storing observations: %w", err)
	}

	logger.Info("backfill complete",
		"lat", loc.Lat,
		"lon", loc.Lon,
		"observations", len(observations),
	)
	return nil
}
