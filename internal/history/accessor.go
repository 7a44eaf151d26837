// Package history implements the historical record accessor: retrieval of
// same-day-of-year analog windows from the observation store, with a
// backfill path from the external climate archive when the store has no
// coverage for a grid cell.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"climarisk/internal/config"
	"climarisk/internal/external"
	"climarisk/internal/types"
)

// Window is one analog window: observations at the same day-of-year
// (± tolerance) across the available years, ordered by date ascending.
type Window struct {
	Observations []types.WeatherObservation
	SampleYears  int
}

// Accessor retrieves analog windows. Implementations must be safe for
// concurrent use across distinct locations.
type Accessor interface {
	FetchWindow(ctx context.Context, loc types.Location, centerDate time.Time) (*Window, error)
}

// ObservationStore is the subset of the observation repository the accessor
// needs.
type ObservationStore interface {
	AnalogWindow(ctx context.Context, loc types.Location, monthDays []string, fromYear, toYear int) ([]types.WeatherObservation, error)
	UpsertBatch(ctx context.Context, obs []types.WeatherObservation) error
}

// StoreAccessor implements Accessor over the Postgres observation store,
// falling back to the archive client for grid cells with no stored coverage.
type StoreAccessor struct {
	store   ObservationStore
	archive external.ArchiveClient
	cfg     config.EngineConfig
	backoff time.Duration
	clock   types.Clock
	logger  *slog.Logger
	sleepFn func(time.Duration)
}

// NewStoreAccessor creates a StoreAccessor. The archive client may be nil,
// in which case uncovered grid cells surface DataUnavailable immediately.
func NewStoreAccessor(
	store ObservationStore,
	archive external.ArchiveClient,
	engineCfg config.EngineConfig,
	archiveCfg config.ArchiveConfig,
	clock types.Clock,
	logger *slog.Logger,
) *StoreAccessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreAccessor{
		store:   store,
		archive: archive,
		cfg:     engineCfg,
		backoff: archiveCfg.RetryBackoff,
		clock:   clock,
		logger:  logger,
		sleepFn: time.Sleep,
	}
}

// FetchWindow returns the analog window for the coordinate and date. The
// read path is pure; the backfill path writes fetched observations through
// to the store so subsequent windows for the cell are served locally.
func (a *StoreAccessor) FetchWindow(ctx context.Context, loc types.Location, centerDate time.Time) (*Window, error) {
	monthDays := analogMonthDays(centerDate, a.cfg.DayTolerance)
	toYear := a.clock.Now().Year() - 1
	fromYear := toYear - a.cfg.YearSpan + 1

	obs, err := a.store.AnalogWindow(ctx, loc, monthDays, fromYear, toYear)
	if err != nil {
		return nil, err
	}

	if len(obs) == 0 {
		obs, err = a.backfill(ctx, loc, monthDays, fromYear, toYear)
		if err != nil {
			return nil, err
		}
	}

	if len(obs) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamDataUnavailable,
			fmt.Sprintf("no historical coverage for (%.2f, %.2f)", loc.Lat, loc.Lon),
			nil,
		)
	}

	return &Window{
		Observations: obs,
		SampleYears:  distinctYears(obs),
	}, nil
}

// backfill pulls the full year span from the archive, persists it, and
// returns the in-window slice. A timeout gets exactly one retry after a
// fixed backoff before the failure is surfaced.
func (a *StoreAccessor) backfill(
	ctx context.Context,
	loc types.Location,
	monthDays []string,
	fromYear, toYear int,
) ([]types.WeatherObservation, error) {
	if a.archive == nil {
		return nil, nil
	}

	start := time.Date(fromYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(toYear, time.December, 31, 0, 0, 0, 0, time.UTC)

	fetched, err := a.archive.FetchDaily(ctx, loc, start, end)
	if isTimeout(err) {
		a.logger.WarnContext(ctx, "archive fetch timed out; retrying once",
			slog.Float64("lat", loc.Lat),
			slog.Float64("lon", loc.Lon),
			slog.Duration("backoff", a.backoff),
		)
		a.sleepFn(a.backoff)
		fetched, err = a.archive.FetchDaily(ctx, loc, start, end)
	}
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamTimeout {
			return nil, types.NewAppError(
				types.ErrCodeUpstreamDataUnavailable,
				"archive unreachable after retry",
				err,
			)
		}
		return nil, err
	}

	if len(fetched) == 0 {
		return nil, nil
	}

	if err := a.store.UpsertBatch(ctx, fetched); err != nil {
		// The window can still be served from the fetched data; losing the
		// write-through only costs a refetch next time.
		a.logger.WarnContext(ctx, "persisting backfilled observations failed",
			slog.String("error", err.Error()),
		)
	}

	return filterMonthDays(fetched, monthDays), nil
}

func isTimeout(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamTimeout
}

// analogMonthDays returns the MMDD keys for centerDate ± tolerance days.
// Offsets wrap cleanly across month and year boundaries.
func analogMonthDays(centerDate time.Time, tolerance int) []string {
	keys := make([]string, 0, 2*tolerance+1)
	for off := -tolerance; off <= tolerance; off++ {
		d := centerDate.AddDate(0, 0, off)
		keys = append(keys, d.Format("0102"))
	}
	return keys
}

func filterMonthDays(obs []types.WeatherObservation, monthDays []string) []types.WeatherObservation {
	keep := make(map[string]struct{}, len(monthDays))
	for _, k := range monthDays {
		keep[k] = struct{}{}
	}
	var out []types.WeatherObservation
	for _, o := range obs {
		if _, ok := keep[o.Date.Format("0102")]; ok {
			out = append(out, o)
		}
	}
	return out
}

func distinctYears(obs []types.WeatherObservation) int {
	years := make(map[int]struct{})
	for _, o := range obs {
		years[o.Date.Year()] = struct{}{}
	}
	return len(years)
}
