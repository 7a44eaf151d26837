package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is one stored prediction, serialized by value. A malformed Result
// payload is never fatal: the manager treats it as a miss and recomputes.
type Entry struct {
	Fingerprint string
	Result      []byte
	CreatedAt   time.Time
	TTL         time.Duration
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Store is the keyed persistence abstraction behind the manager. The
// Postgres-backed implementation lives in internal/db; MemoryStore below
// serves tests and cache-less deployments.
//
// Get returns (nil, nil) for an absent or expired fingerprint.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
	InvalidateAll(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the stored entry, or nil when absent or expired. Expired
// entries are dropped lazily on lookup.
func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if entry.Expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have renewed it.
		if cur, still := s.entries[fingerprint]; still && cur.Expired(s.now()) {
			delete(s.entries, fingerprint)
		}
		s.mu.Unlock()
		return nil, nil
	}
	return &entry, nil
}

// Put stores or replaces the entry for its fingerprint.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	s.entries[entry.Fingerprint] = entry
	s.mu.Unlock()
	return nil
}

// InvalidateAll drops every stored entry. Called on model-update events.
func (s *MemoryStore) InvalidateAll(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
