package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"climarisk/internal/types"
)

// ComputeFunc produces a fresh PredictionResult on a cache miss.
type ComputeFunc func(ctx context.Context) (*types.PredictionResult, error)

// Stats is the counters snapshot exposed on the health endpoint.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Coalesced int64 `json:"coalesced"`
	Corrupt   int64 `json:"corrupt"`
}

// Manager fronts a Store with an in-memory singleflight guard so that at
// most one computation runs per fingerprint at any time. Lifecycle per
// fingerprint: absent -> pending (one flight, all concurrent callers share
// its result) -> hit (served until TTL) -> expired (treated as absent).
//
// The pending state is scoped to a single fingerprint; computations for
// distinct fingerprints never block one another. When a flight fails or
// times out, singleflight forgets the key as the flight unwinds, so a retry
// is never permanently blocked.
type Manager struct {
	store  Store
	group  singleflight.Group
	ttl    time.Duration
	clock  types.Clock
	logger *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
	corrupt   atomic.Int64
}

// NewManager creates a Manager over the given store with the given TTL.
func NewManager(store Store, ttl time.Duration, clock types.Clock, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
	}
}

// GetOrCompute returns the cached result for the key, computing and storing
// it on a miss. The boolean reports whether the result came from the store.
// Concurrent callers with the same fingerprint share one computation.
func (m *Manager) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (*types.PredictionResult, bool, error) {
	fp := key.Fingerprint()

	if result := m.lookup(ctx, fp); result != nil {
		m.hits.Add(1)
		return result, true, nil
	}
	m.misses.Add(1)

	v, err, shared := m.group.Do(fp, func() (interface{}, error) {
		// Double-check under the flight: another caller may have finished
		// and stored the result between our lookup and acquiring the flight.
		if result := m.lookup(ctx, fp); result != nil {
			return result, nil
		}

		result, err := compute(ctx)
		if err != nil {
			// Nothing is stored; the fingerprint reverts to absent when the
			// flight unwinds, so a retry recomputes.
			return nil, err
		}

		m.persist(ctx, fp, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		m.coalesced.Add(1)
	}

	return v.(*types.PredictionResult), false, nil
}

// lookup fetches and decodes a stored entry. Store errors and corrupt
// payloads both degrade to a miss; corruption is counted and logged.
func (m *Manager) lookup(ctx context.Context, fp string) *types.PredictionResult {
	entry, err := m.store.Get(ctx, fp)
	if err != nil {
		m.logger.WarnContext(ctx, "cache lookup failed, treating as miss",
			"fingerprint", fp,
			"error", err,
		)
		return nil
	}
	if entry == nil {
		return nil
	}
	if entry.Expired(m.clock.Now()) {
		return nil
	}

	var result types.PredictionResult
	if err := json.Unmarshal(entry.Result, &result); err != nil {
		m.corrupt.Add(1)
		m.logger.WarnContext(ctx, "corrupt cache entry, recomputing",
			"fingerprint", fp,
			"code", string(types.ErrCodeCacheCorruption),
			"error", err,
		)
		return nil
	}
	return &result
}

// persist stores the computed result. Failures are logged, never surfaced:
// serving the fresh result matters more than caching it.
func (m *Manager) persist(ctx context.Context, fp string, result *types.PredictionResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to serialize prediction for cache",
			"fingerprint", fp,
			"error", err,
		)
		return
	}
	entry := Entry{
		Fingerprint: fp,
		Result:      payload,
		CreatedAt:   m.clock.Now(),
		TTL:         m.ttl,
	}
	if err := m.store.Put(ctx, entry); err != nil {
		m.logger.WarnContext(ctx, "failed to store cache entry",
			"fingerprint", fp,
			"error", err,
		)
	}
}

// Invalidate expires every stored entry. Called when model artifacts are
// retrained or swapped.
func (m *Manager) Invalidate(ctx context.Context) error {
	return m.store.InvalidateAll(ctx)
}

// Stats returns the current cache counters.
func (m *Manager) Stats(ctx context.Context) Stats {
	entries, err := m.store.Len(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to count cache entries", "error", err)
	}
	return Stats{
		Entries:   entries,
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Coalesced: m.coalesced.Load(),
		Corrupt:   m.corrupt.Load(),
	}
}
