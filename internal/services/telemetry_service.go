// Package services – TelemetryService
//
// This file implements the telemetry ingestor, the pipeline behind
// POST /telemetry/ping. Each ingestion passes, in order: field validation,
// fixed-window rate limiting keyed by device, device existence, entitlement
// at the current instant, and the idempotency guard on eventId. Only then is
// the event persisted and the device snapshot updated.
//
// The TelemetryEvent insert and the Device snapshot update form one
// ingestion unit. The two writes are not atomic; the unique index on
// event_id is what prevents the unit from ever running twice for the same
// eventId, and a duplicate insert short-circuits before the snapshot write.
//
// Observability: Ingest is OpenTelemetry-instrumented; spans carry the
// device and event identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sensorhub-backend/internal/ratelimit"
	"github.com/tbourn/go-sensorhub-backend/internal/repo"
)

// Defaults for the per-device admission window (5 pings per second).
const (
	defaultTelemetryRateLimit  = 5
	defaultTelemetryRateWindow = time.Second
)

// TelemetryInput carries one telemetry ping. Value arrives via a *float64 at
// the transport layer so that a reading of exactly zero is distinguishable
// from an absent field; by the time it reaches the service it is a plain
// float64.
type TelemetryInput struct {
	DeviceID string
	Metric   string
	Value    float64
	Status   string
	TS       time.Time
	EventID  string
}

// IngestOutcome reports how an ingestion request concluded. Replayed is true
// when the idempotency guard matched a previously stored event and no new
// work was performed.
type IngestOutcome struct {
	Replayed bool
}

// TelemetryService coordinates validation, admission, entitlement, and
// persistence for telemetry pings.
type TelemetryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Limiter enforces the per-device fixed window.
	Limiter *ratelimit.Limiter
	// Gate answers entitlement checks at ingestion time.
	Gate *EntitlementGate

	// RateLimit / RateWindow override the 5-per-second default when > 0.
	RateLimit  int64
	RateWindow time.Duration

	// now is a clock seam for entitlement-boundary tests; defaults to
	// time.Now.
	now func() time.Time
}

// NewTelemetryService constructs a TelemetryService with default admission
// settings.
func NewTelemetryService(db *gorm.DB, limiter *ratelimit.Limiter) *TelemetryService {
	return &TelemetryService{
		DB:      db,
		Limiter: limiter,
		Gate:    &EntitlementGate{DB: db},
	}
}

// Ingest runs the full ingestion pipeline for one ping.
//
// Error mapping (performed by the handler):
//   - ErrMissingFields: a required field is empty.
//   - ErrRateLimited: the device exceeded its fixed window. The denied call
//     still counted against the window.
//   - ErrDeviceNotFound: no device row for DeviceID.
//   - ErrNoActiveSubscription: device exists but is not entitled now.
//
// A duplicate EventID is not an error: the outcome is returned with
// Replayed=true and neither the event store nor the device snapshot is
// touched again.
func (s *TelemetryService) Ingest(ctx context.Context, in TelemetryInput) (IngestOutcome, error) {
	tr := otel.Tracer("services/TelemetryService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("device.id", in.DeviceID),
			attribute.String("telemetry.event_id", in.EventID),
			attribute.String("telemetry.metric", in.Metric),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.DeviceID) == "" ||
		strings.TrimSpace(in.Metric) == "" ||
		strings.TrimSpace(in.Status) == "" ||
		strings.TrimSpace(in.EventID) == "" ||
		in.TS.IsZero() {
		return IngestOutcome{}, ErrMissingFields
	}

	// Admission before any event-store read; denied calls count too.
	allowed, err := s.Limiter.Allow(ctx, ratelimit.DeviceKey(in.DeviceID), s.limit(), s.window())
	if err != nil {
		return IngestOutcome{}, err
	}
	if !allowed {
		rateLimitDenials.WithLabelValues("device").Inc()
		return IngestOutcome{}, ErrRateLimited
	}

	if _, err := repo.GetDevice(ctx, s.DB, in.DeviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return IngestOutcome{}, ErrDeviceNotFound
		}
		return IngestOutcome{}, err
	}

	// Entitlement is evaluated against wall-clock time on every call.
	entitled, err := s.Gate.IsEntitled(ctx, in.DeviceID, s.clock())
	if err != nil {
		return IngestOutcome{}, err
	}
	if !entitled {
		return IngestOutcome{}, ErrNoActiveSubscription
	}

	// Idempotency guard: pre-check, with the unique index as the safety net
	// below.
	if _, err := repo.GetTelemetryEvent(ctx, s.DB, in.EventID); err == nil {
		telemetryReplayed.Inc()
		return IngestOutcome{Replayed: true}, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return IngestOutcome{}, err
	}

	if _, err := repo.CreateTelemetryEvent(ctx, s.DB, in.EventID, in.DeviceID, in.Metric, in.Value, in.Status, in.TS); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost the concurrent race: someone else ingested this eventId
			// between our check and insert. Same answer as the pre-check hit.
			telemetryReplayed.Inc()
			return IngestOutcome{Replayed: true}, nil
		}
		return IngestOutcome{}, err
	}

	if err := repo.UpdateDeviceSnapshot(ctx, s.DB, in.DeviceID, in.Status, in.Metric, in.Value, in.TS); err != nil {
		return IngestOutcome{}, err
	}

	telemetryIngested.Inc()
	return IngestOutcome{}, nil
}

func (s *TelemetryService) limit() int64 {
	if s.RateLimit > 0 {
		return s.RateLimit
	}
	return defaultTelemetryRateLimit
}

func (s *TelemetryService) window() time.Duration {
	if s.RateWindow > 0 {
		return s.RateWindow
	}
	return defaultTelemetryRateWindow
}

func (s *TelemetryService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
