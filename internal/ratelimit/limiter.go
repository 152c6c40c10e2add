// Package ratelimit turns the counter.Store primitive into a fixed-window
// admission decision. Unlike the token-bucket edge limiter in the HTTP
// middleware (which protects the process per client IP), this limiter
// enforces the per-key business quotas: 5 telemetry pings per device per
// second, 5 relay publishes per client per second.
//
// Semantics:
//   - Fixed window, not sliding: the first request for a key opens a window
//     of the given length; the counter resets when it elapses.
//   - Every call increments the counter exactly once, including denied calls,
//     so hammering a saturated key keeps it saturated.
//   - Counter store failures propagate as errors (fail-closed): silently
//     allowing unbounded traffic when the store is down is unsafe.
package ratelimit

import (
	"context"
	"time"
)

// Store is the subset of the counter port the limiter needs.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limiter makes fixed-window admission decisions backed by a counter store.
type Limiter struct {
	store Store
}

// New returns a Limiter over the given counter store.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Allow increments the counter for key and reports whether the request is
// admitted: true while the post-increment count is within limit, false once
// it exceeds it. A store error is returned as-is and the caller must treat
// the request as failed, not as admitted.
func (l *Limiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	n, err := l.store.Incr(ctx, key, window)
	if err != nil {
		return false, err
	}
	return n <= limit, nil
}

// DeviceKey namespaces a telemetry rate-limit key so device windows never
// collide with client windows.
func DeviceKey(deviceID string) string { return "device:" + deviceID }

// ClientKey namespaces a relay rate-limit key.
func ClientKey(clientID string) string { return "client:" + clientID }
