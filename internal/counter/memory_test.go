package counter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_IncrCountsWithinWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := s.Incr(ctx, "device:123", time.Second)
		if err != nil {
			t.Fatalf("Incr error: %v", err)
		}
		if got != want {
			t.Fatalf("Incr = %d, want %d", got, want)
		}
	}
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Incr(ctx, "device:a", time.Second); err != nil {
		t.Fatalf("Incr a: %v", err)
	}
	got, err := s.Incr(ctx, "client:a", time.Second)
	if err != nil {
		t.Fatalf("Incr b: %v", err)
	}
	if got != 1 {
		t.Fatalf("fresh key count = %d, want 1", got)
	}
}

func TestMemoryStore_WindowExpiryResetsCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Fixed clock we can advance by hand.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		if _, err := s.Incr(ctx, "k", time.Second); err != nil {
			t.Fatalf("Incr: %v", err)
		}
	}

	// Still inside the window: count keeps growing.
	now = now.Add(999 * time.Millisecond)
	got, _ := s.Incr(ctx, "k", time.Second)
	if got != 7 {
		t.Fatalf("in-window count = %d, want 7", got)
	}

	// Window elapsed: the next increment starts a fresh window at 1.
	now = now.Add(time.Second)
	got, _ = s.Incr(ctx, "k", time.Second)
	if got != 1 {
		t.Fatalf("post-expiry count = %d, want 1", got)
	}
}

func TestMemoryStore_SweepDropsExpiredEntries(t *testing.T) {
	s := NewMemoryStore()
	s.sweepAt = 10
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		if _, err := s.Incr(ctx, fmt.Sprintf("k%d", i), time.Second); err != nil {
			t.Fatalf("Incr: %v", err)
		}
	}

	// All ten windows expire; the next Incr triggers the sweep.
	now = now.Add(2 * time.Second)
	if _, err := s.Incr(ctx, "fresh", time.Second); err != nil {
		t.Fatalf("Incr fresh: %v", err)
	}

	s.mu.Lock()
	n := len(s.windows)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("windows after sweep = %d, want 1", n)
	}
}

func TestMemoryStore_ConcurrentIncrIsAtomic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Incr(ctx, "hot", time.Minute); err != nil {
				t.Errorf("Incr: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Incr(ctx, "hot", time.Minute)
	if got != goroutines+1 {
		t.Fatalf("final count = %d, want %d", got, goroutines+1)
	}
}
