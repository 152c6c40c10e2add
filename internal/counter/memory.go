// Package counter – in-process Store implementation.
package counter

import (
	"context"
	"sync"
	"time"
)

// window holds one live counter and the instant its value expires.
type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local counter store with per-key expiry. It is the
// shipped implementation of the Store port for single-process deployments;
// horizontally scaled deployments should back the same port with a shared
// store (e.g. Redis INCR/EXPIRE).
//
// Expired entries are dropped lazily on access and swept opportunistically
// once the map grows past a threshold, bounding memory without a background
// goroutine. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	// now is a test seam; defaults to time.Now.
	now nowFunc

	// sweepAt triggers a full sweep of expired entries when the map reaches
	// this size. Zero disables sweeping.
	sweepAt int
}

// NewMemoryStore returns an empty MemoryStore ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
		sweepAt: 10_000,
	}
}

// Incr atomically increments the counter for key, starting a new window with
// the given ttl when no live window exists. It returns the post-increment
// count. The context is accepted for interface symmetry with networked
// stores; the in-memory implementation never blocks on it.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sweepAt > 0 && len(s.windows) >= s.sweepAt {
		for k, w := range s.windows {
			if !now.Before(w.expiresAt) {
				delete(s.windows, k)
			}
		}
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{count: 0, expiresAt: now.Add(ttl)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}
