package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"climarisk/internal/types"
)

// ObservationRepository provides data access for the weather_observations
// table. Observations are append-only: rows are upserted during backfill and
// never mutated afterwards.
type ObservationRepository struct {
	db DBTX
}

// NewObservationRepository creates an ObservationRepository backed by the
// given database connection (pool or transaction).
func NewObservationRepository(db DBTX) *ObservationRepository {
	return &ObservationRepository{db: db}
}

const obsColumns = `o.observed_on, o.location_lat, o.location_lon,
	o.temp_max_c, o.temp_min_c, o.temp_mean_c,
	o.humidity_pct, o.wind_speed_ms, o.precip_mm, o.pressure_kpa`

func scanObservation(row pgx.Row, loc types.Location) (types.WeatherObservation, error) {
	var o types.WeatherObservation
	o.Location = loc
	err := row.Scan(
		&o.Date,
		&o.Location.Lat,
		&o.Location.Lon,
		&o.TempMaxC,
		&o.TempMinC,
		&o.TempMeanC,
		&o.HumidityPct,
		&o.WindSpeedMS,
		&o.PrecipMM,
		&o.PressureKPa,
	)
	if err != nil {
		return types.WeatherObservation{}, err
	}
	o.Date = o.Date.UTC()
	return o, nil
}

// AnalogWindow returns every stored observation at the grid cell whose
// month-day falls in monthDays (strings in MMDD form) and whose year lies in
// [fromYear, toYear], ordered by date ascending. Month-day matching rather
// than day-of-year keeps the window stable across leap years.
func (r *ObservationRepository) AnalogWindow(
	ctx context.Context,
	loc types.Location,
	monthDays []string,
	fromYear, toYear int,
) ([]types.WeatherObservation, error) {
	grid := loc.Rounded()

	query := `
		SELECT ` + obsColumns + `
		FROM weather_observations o
		WHERE o.location_lat = $1
		  AND o.location_lon = $2
		  AND to_char(o.observed_on, 'MMDD') = ANY($3)
		  AND EXTRACT(YEAR FROM o.observed_on) BETWEEN $4 AND $5
		ORDER BY o.observed_on ASC`

	rows, err := r.db.Query(ctx, query, grid.Lat, grid.Lon, monthDays, fromYear, toYear)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "querying analog window", err)
	}
	defer rows.Close()

	var out []types.WeatherObservation
	for rows.Next() {
		o, err := scanObservation(rows, loc)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning observation row", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterating observation rows", err)
	}
	return out, nil
}

// Upsert writes one observation for its grid cell and date, replacing any
// previous reading. Used by the archive backfill path.
func (r *ObservationRepository) Upsert(ctx context.Context, o types.WeatherObservation) error {
	grid := o.Location.Rounded()

	query := `
		INSERT INTO weather_observations (
			observed_on, location_lat, location_lon,
			temp_max_c, temp_min_c, temp_mean_c,
			humidity_pct, wind_speed_ms, precip_mm, pressure_kpa
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (observed_on, location_lat, location_lon) DO UPDATE SET
			temp_max_c = EXCLUDED.temp_max_c,
			temp_min_c = EXCLUDED.temp_min_c,
			temp_mean_c = EXCLUDED.temp_mean_c,
			humidity_pct = EXCLUDED.humidity_pct,
			wind_speed_ms = EXCLUDED.wind_speed_ms,
			precip_mm = EXCLUDED.precip_mm,
			pressure_kpa = EXCLUDED.pressure_kpa`

	_, err := r.db.Exec(ctx, query,
		o.Date.UTC().Truncate(24*time.Hour),
		grid.Lat,
		grid.Lon,
		o.TempMaxC,
		o.TempMinC,
		o.TempMeanC,
		o.HumidityPct,
		o.WindSpeedMS,
		o.PrecipMM,
		o.PressureKPa,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "upserting observation", err)
	}
	return nil
}

// UpsertBatch writes a series of observations for one grid cell.
func (r *ObservationRepository) UpsertBatch(ctx context.Context, obs []types.WeatherObservation) error {
	for _, o := range obs {
		if err := r.Upsert(ctx, o); err != nil {
			return err
		}
	}
	return nil
}
