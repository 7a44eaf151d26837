package db

import (
	"context"
	"time"

	"climarisk/internal/types"
)

// AnalyticsRepository provides data access for the user_queries log. One row
// is written per served prediction; writes are fire-and-forget from the
// caller's perspective and never fail a request.
type AnalyticsRepository struct {
	db DBTX
}

// NewAnalyticsRepository creates an AnalyticsRepository backed by the given
// database connection (pool or transaction).
func NewAnalyticsRepository(db DBTX) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Record appends one query log row.
func (r *AnalyticsRepository) Record(ctx context.Context, entry types.QueryLogEntry) error {
	query := `
		INSERT INTO user_queries (
			id, queried_at, endpoint, activity,
			location_lat, location_lon, cache_hit, latency_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.Timestamp.UTC(),
		entry.Endpoint,
		entry.Activity,
		entry.Lat,
		entry.Lon,
		entry.CacheHit,
		entry.Latency.Milliseconds(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "recording query log entry", err)
	}
	return nil
}

// Summary aggregates the query log over [start, end]: totals, cache hit
// rate, average latency, and per-activity counts.
func (r *AnalyticsRepository) Summary(ctx context.Context, start, end time.Time) (*types.AnalyticsSummary, error) {
	summary := &types.AnalyticsSummary{
		TopActivities: make(map[string]int64),
		WindowStart:   start.UTC(),
		WindowEnd:     end.UTC(),
	}

	totalsQuery := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE cache_hit),
			COALESCE(AVG(latency_ms), 0)
		FROM user_queries
		WHERE queried_at BETWEEN $1 AND $2`

	err := r.db.QueryRow(ctx, totalsQuery, summary.WindowStart, summary.WindowEnd).Scan(
		&summary.TotalQueries,
		&summary.CacheHits,
		&summary.AvgLatencyMS,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "aggregating query log", err)
	}
	if summary.TotalQueries > 0 {
		summary.CacheHitRate = float64(summary.CacheHits) / float64(summary.TotalQueries)
	}

	activitiesQuery := `
		SELECT activity, COUNT(*)
		FROM user_queries
		WHERE queried_at BETWEEN $1 AND $2
		GROUP BY activity
		ORDER BY COUNT(*) DESC
		LIMIT 10`

	rows, err := r.db.Query(ctx, activitiesQuery, summary.WindowStart, summary.WindowEnd)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "aggregating query activities", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			activity string
			count    int64
		)
		if err := rows.Scan(&activity, &count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning activity count row", err)
		}
		summary.TopActivities[activity] = count
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterating activity count rows", err)
	}
	return summary, nil
}
