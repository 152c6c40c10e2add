// Package faults provides the injectable failure-decision strategy used by
// the mock provider endpoints (/mock-relay/receive, /mock-pay/charge). The
// shipped server wires a probabilistic injector; tests wire a scripted one to
// force deterministic success/failure sequences.
package faults

import (
	"math/rand"
	"sync"
)

// Injector decides whether the next simulated provider call should fail.
// Implementations must be safe for concurrent use.
type Injector interface {
	ShouldFail() bool
}

// Random fails with the configured probability. A Rate of 0.3 reproduces the
// original mock relay (30% failure); 0.2 the mock payment provider.
type Random struct {
	Rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random injector with its own seeded source.
func NewRandom(rate float64, seed int64) *Random {
	return &Random{Rate: rate, rng: rand.New(rand.NewSource(seed))}
}

// ShouldFail reports true with probability Rate.
func (r *Random) ShouldFail() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng == nil {
		return rand.Float64() < r.Rate
	}
	return r.rng.Float64() < r.Rate
}

// Scripted replays a fixed sequence of decisions, then keeps returning Tail.
// It makes retry behavior fully deterministic in tests (e.g. fail, fail,
// succeed).
type Scripted struct {
	Seq  []bool
	Tail bool

	mu sync.Mutex
	i  int
}

// ShouldFail pops the next scripted decision.
func (s *Scripted) ShouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i < len(s.Seq) {
		v := s.Seq[s.i]
		s.i++
		return v
	}
	return s.Tail
}

// Never is an Injector that never fails.
type Never struct{}

// ShouldFail always reports false.
func (Never) ShouldFail() bool { return false }

// Always is an Injector that always fails.
type Always struct{}

// ShouldFail always reports true.
func (Always) ShouldFail() bool { return true }
