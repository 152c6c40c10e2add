// Package counter defines the atomic increment-with-expiry primitive that the
// fixed-window rate limiter is built on. The contract matches the Redis
// INCR+EXPIRE idiom: the first increment of a key starts its window and
// attaches the TTL; later increments within the window only bump the count.
package counter

import (
	"context"
	"time"
)

// Store is the counter port. Implementations must be safe for concurrent use
// and must make the increment atomic: two concurrent calls for the same key
// observe distinct post-increment counts.
//
// Incr returns the post-increment count for key. When the increment
// transitions the counter from absent (or expired) to one, the ttl is
// attached and the counter resets to zero once it elapses.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// nowFunc is the clock seam used by MemoryStore; tests substitute it to step
// through window boundaries deterministically.
type nowFunc func() time.Time
