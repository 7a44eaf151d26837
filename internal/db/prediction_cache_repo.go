package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"climarisk/internal/cache"
	"climarisk/internal/types"
)

// PredictionCacheRepository implements cache.Store on the weather_predictions
// table, giving cached results durability across process restarts. The
// manager layers singleflight coalescing and corruption handling on top.
type PredictionCacheRepository struct {
	db DBTX
}

var _ cache.Store = (*PredictionCacheRepository)(nil)

// NewPredictionCacheRepository creates a PredictionCacheRepository backed by
// the given database connection (pool or transaction).
func NewPredictionCacheRepository(db DBTX) *PredictionCacheRepository {
	return &PredictionCacheRepository{db: db}
}

// Get returns the stored entry for the fingerprint, or (nil, nil) when the
// fingerprint is absent or its TTL has elapsed. Expired rows are left for
// Sweep rather than deleted inline, keeping reads cheap.
func (r *PredictionCacheRepository) Get(ctx context.Context, fingerprint string) (*cache.Entry, error) {
	query := `
		SELECT fingerprint, result, created_at, ttl_seconds
		FROM weather_predictions
		WHERE fingerprint = $1`

	var (
		entry      cache.Entry
		ttlSeconds int64
	)
	err := r.db.QueryRow(ctx, query, fingerprint).Scan(
		&entry.Fingerprint,
		&entry.Result,
		&entry.CreatedAt,
		&ttlSeconds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "querying prediction cache", err)
	}

	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.TTL = time.Duration(ttlSeconds) * time.Second
	if entry.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return &entry, nil
}

// Put stores or replaces the entry for its fingerprint.
func (r *PredictionCacheRepository) Put(ctx context.Context, entry cache.Entry) error {
	query := `
		INSERT INTO weather_predictions (fingerprint, result, created_at, ttl_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fingerprint) DO UPDATE SET
			result = EXCLUDED.result,
			created_at = EXCLUDED.created_at,
			ttl_seconds = EXCLUDED.ttl_seconds`

	_, err := r.db.Exec(ctx, query,
		entry.Fingerprint,
		entry.Result,
		entry.CreatedAt.UTC(),
		int64(entry.TTL/time.Second),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "storing prediction cache entry", err)
	}
	return nil
}

// InvalidateAll drops every cached prediction. Called after a model update
// so stale probabilities are never served against new weights.
func (r *PredictionCacheRepository) InvalidateAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM weather_predictions`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "invalidating prediction cache", err)
	}
	return nil
}

// Len counts live (unexpired) cache rows.
func (r *PredictionCacheRepository) Len(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM weather_predictions
		WHERE created_at + make_interval(secs => ttl_seconds) > now()`

	var n int
	if err := r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "counting prediction cache entries", err)
	}
	return n, nil
}

// Sweep removes rows whose TTL elapsed before the cutoff. Intended for a
// periodic maintenance call; correctness never depends on it because Get
// filters expired rows.
func (r *PredictionCacheRepository) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM weather_predictions
		 WHERE created_at + make_interval(secs => ttl_seconds) < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "sweeping prediction cache", err)
	}
	return tag.RowsAffected(), nil
}
