// Package services – RelayService
//
// This file implements the relay dispatcher behind POST /relay/publish. A
// publish resolves the caller's credential, validates the payload, passes
// the per-client fixed window, consults the idempotency guard, and then
// drives a bounded retry loop against the downstream receiver with
// exponential backoff before recording the final outcome as a RelayLog row.
//
// The receiver is an injected port, not a hardwired HTTP call back into this
// process, so the dispatcher can be exercised directly in tests and pointed
// at any downstream in production.
//
// Retry classification preserves the forwarding contract: a response status
// >= 500 is a transient failure and a retry candidate; anything else,
// including 4xx rejections, ends the loop as a delivered outcome. Transport
// errors (the receiver could not be reached at all) abort the publish and
// surface as internal errors without recording an outcome.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
	"github.com/tbourn/go-sensorhub-backend/internal/ratelimit"
	"github.com/tbourn/go-sensorhub-backend/internal/repo"
)

// Defaults for the dispatch loop and the per-client admission window.
const (
	defaultRelayMaxAttempts = 3
	defaultRelayBackoffBase = time.Second
	defaultRelayRateLimit   = 5
	defaultRelayRateWindow  = time.Second
)

// Receiver is the downstream delivery port. Deliver forwards (message, meta)
// and returns the downstream HTTP status code. A non-nil error means the
// downstream could not be reached at all; status classification applies only
// when err is nil.
type Receiver interface {
	Deliver(ctx context.Context, message string, meta map[string]any) (int, error)
}

// PublishInput carries one relay publish request.
type PublishInput struct {
	ClientID       string
	Message        string
	Meta           map[string]any
	IdempotencyKey string
}

// PublishOutcome reports how a publish concluded. Status is the recorded
// RelayLog status ("success" or "failed"); Retries is attemptsMade-1;
// Replayed is true when the outcome was served from a previously stored
// RelayLog without re-dispatching.
type PublishOutcome struct {
	Status   string
	Retries  int
	Replayed bool
}

// RelayService implements the bounded-retry dispatch protocol with outcome
// recording.
type RelayService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Limiter enforces the per-client fixed window.
	Limiter *ratelimit.Limiter
	// Receiver is the downstream delivery port.
	Receiver Receiver

	// MaxAttempts bounds the dispatch loop (default 3 attempts total).
	MaxAttempts int
	// BackoffBase is the delay after the first attempt; it doubles per
	// attempt (1s, 2s with the defaults). No wait follows the final attempt.
	BackoffBase time.Duration

	// RateLimit / RateWindow override the 5-per-second default when > 0.
	RateLimit  int64
	RateWindow time.Duration

	// Sleep is the backoff seam; defaults to a context-aware sleep. Tests
	// substitute it to observe backoff without waiting.
	Sleep func(ctx context.Context, d time.Duration)
}

// NewRelayService constructs a RelayService with default dispatch settings.
func NewRelayService(db *gorm.DB, limiter *ratelimit.Limiter, recv Receiver) *RelayService {
	return &RelayService{DB: db, Limiter: limiter, Receiver: recv}
}

// Publish runs the full relay pipeline for one request.
//
// Error mapping (performed by the handler):
//   - ErrInvalidAPIKey: the credential resolves to no client (403). A missing
//     credential never reaches the service; the handler rejects it with 401.
//   - ErrMissingFields: clientId, message, or idempotencyKey absent (400).
//   - ErrRateLimited: the client exceeded its fixed window (429).
//   - ErrRelayExhausted: every attempt failed with a 5xx (502). The failed
//     outcome was still recorded and will be replayed for this key.
//
// A previously recorded idempotency key is not an error: the stored outcome
// is returned with Replayed=true and the downstream receiver is not invoked.
func (s *RelayService) Publish(ctx context.Context, apiKey string, in PublishInput) (PublishOutcome, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "Publish",
		trace.WithAttributes(
			attribute.String("relay.client_id", in.ClientID),
			attribute.String("relay.idempotency_key", in.IdempotencyKey),
		),
	)
	defer span.End()

	// 1) Credential resolution precedes field validation, mirroring the
	// publish contract.
	if _, err := repo.GetClientByAPIKey(ctx, s.DB, apiKey); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return PublishOutcome{}, ErrInvalidAPIKey
		}
		return PublishOutcome{}, err
	}

	// 2) Required fields, before any further store access.
	if strings.TrimSpace(in.ClientID) == "" ||
		strings.TrimSpace(in.Message) == "" ||
		strings.TrimSpace(in.IdempotencyKey) == "" {
		return PublishOutcome{}, ErrMissingFields
	}

	// 3) Per-client admission; denied calls count against the window.
	allowed, err := s.Limiter.Allow(ctx, ratelimit.ClientKey(in.ClientID), s.limit(), s.window())
	if err != nil {
		return PublishOutcome{}, err
	}
	if !allowed {
		rateLimitDenials.WithLabelValues("client").Inc()
		return PublishOutcome{}, ErrRateLimited
	}

	// 4) Idempotency guard: replay a recorded outcome without re-dispatching.
	if prior, err := repo.GetRelayLog(ctx, s.DB, in.IdempotencyKey); err == nil {
		return outcomeFrom(prior, true), nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return PublishOutcome{}, err
	}

	// 5) Dispatch loop. Once dispatching starts it runs to the end of its
	// attempts and records its outcome even if the original caller
	// disconnects; cancellation does not propagate into the loop.
	ctx = context.WithoutCancel(ctx)

	maxAttempts := s.attempts()
	attempt := 0
	success := false
	for attempt < maxAttempts && !success {
		attempt++
		relayAttempts.Inc()

		status, err := s.Receiver.Deliver(ctx, in.Message, in.Meta)
		if err != nil {
			// Downstream unreachable: not a retry candidate, no outcome
			// recorded.
			return PublishOutcome{}, err
		}

		if status >= 500 {
			span.AddEvent("relay attempt failed",
				trace.WithAttributes(
					attribute.Int("relay.attempt", attempt),
					attribute.Int("relay.status", status),
				),
			)
			if attempt < maxAttempts {
				s.sleep(ctx, s.backoff(attempt))
			}
		} else {
			// Any non-5xx response, 4xx included, ends the loop as
			// delivered. Permanent rejections are recorded as success;
			// intentional, see the forwarding contract.
			success = true
		}
	}

	// 6) Record the final outcome, with the unique index resolving
	// concurrent duplicates.
	finalStatus := domain.RelayStatusFailed
	if success {
		finalStatus = domain.RelayStatusSuccess
	}
	rl, err := repo.CreateRelayLog(ctx, s.DB, in.IdempotencyKey, in.ClientID, in.Message, encodeMeta(in.Meta), finalStatus, attempt-1)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// A concurrent duplicate recorded first; replay its outcome.
			prior, getErr := repo.GetRelayLog(ctx, s.DB, in.IdempotencyKey)
			if getErr != nil {
				return PublishOutcome{}, getErr
			}
			return outcomeFrom(prior, true), nil
		}
		return PublishOutcome{}, err
	}
	relayOutcomes.WithLabelValues(finalStatus).Inc()

	// 7) Exhaustion is a distinguishable outcome, not a generic error.
	if !success {
		return outcomeFrom(rl, false), ErrRelayExhausted
	}
	return outcomeFrom(rl, false), nil
}

// outcomeFrom converts a stored RelayLog row into a PublishOutcome.
func outcomeFrom(rl *domain.RelayLog, replayed bool) PublishOutcome {
	return PublishOutcome{Status: rl.Status, Retries: rl.Retries, Replayed: replayed}
}

// encodeMeta stringifies meta for the append-only log. Nil meta is stored as
// an empty object for stable replay responses.
func encodeMeta(meta map[string]any) string {
	if meta == nil {
		return "{}"
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (s *RelayService) attempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return defaultRelayMaxAttempts
}

// backoff returns the wait after the given 1-based attempt: base, 2*base,
// 4*base, ...
func (s *RelayService) backoff(attempt int) time.Duration {
	base := s.BackoffBase
	if base <= 0 {
		base = defaultRelayBackoffBase
	}
	return base << (attempt - 1)
}

func (s *RelayService) limit() int64 {
	if s.RateLimit > 0 {
		return s.RateLimit
	}
	return defaultRelayRateLimit
}

func (s *RelayService) window() time.Duration {
	if s.RateWindow > 0 {
		return s.RateWindow
	}
	return defaultRelayRateWindow
}

// sleep waits for d or until ctx is done. The dispatch loop passes an
// uncancellable context, so in practice the full backoff elapses.
func (s *RelayService) sleep(ctx context.Context, d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
