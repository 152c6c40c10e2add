// Telemetry HTTP handlers.
//
// This file exposes the ingestion endpoint:
//   - POST /telemetry/ping (idempotent ingest)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate sentinel errors into the HTTP taxonomy. The service contracts
// for every endpoint group are declared here alongside the Handlers wiring.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
	"github.com/tbourn/go-sensorhub-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// TelemetryService defines the ingestion operation consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TelemetryService interface {
	// Ingest runs the full ingestion pipeline for one device ping.
	Ingest(ctx context.Context, in services.TelemetryInput) (services.IngestOutcome, error)
}

// RelayService defines the relay publish operation.
type RelayService interface {
	// Publish dispatches a message downstream with bounded retries and
	// records the outcome under the caller's idempotency key.
	Publish(ctx context.Context, apiKey string, in services.PublishInput) (services.PublishOutcome, error)
}

// DeviceService defines the read-side snapshot queries.
type DeviceService interface {
	// Latest returns the current snapshot for one device.
	Latest(ctx context.Context, deviceID string) (*services.DeviceSnapshot, error)
	// ListPage returns a page of device snapshots and the fleet total.
	ListPage(ctx context.Context, page, pageSize int) ([]services.DeviceSnapshot, int64, error)
}

// BillingService defines the subscription purchase operation.
type BillingService interface {
	// Subscribe charges the payment provider and creates an active
	// subscription for the device.
	Subscribe(ctx context.Context, deviceID, planID string) (*domain.Subscription, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for telemetry, relay, devices, and billing.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	telemetrySvc TelemetryService
	relaySvc     RelayService
	deviceSvc    DeviceService
	billingSvc   BillingService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(tel TelemetryService, relay RelayService, dev DeviceService, billing BillingService) *Handlers {
	return &Handlers{telemetrySvc: tel, relaySvc: relay, deviceSvc: dev, billingSvc: billing}
}

//
// DTOs
//

// TelemetryPingRequest is the JSON payload for a device telemetry ping.
//
// Value is bound through a pointer so a numeric zero counts as present.
type TelemetryPingRequest struct {
	DeviceID string         `json:"deviceId" binding:"required" example:"123"`
	Metric   string         `json:"metric" binding:"required" example:"temperature"`
	Value    *float64       `json:"value" binding:"required" example:"21.5"`
	Status   string         `json:"status" binding:"required" example:"ok"`
	TS       string         `json:"ts" binding:"required" example:"2026-03-01T12:00:00Z"`
	EventID  string         `json:"eventId" binding:"required" example:"evt-0001"`
	Meta     map[string]any `json:"meta,omitempty"`
}

//
// Handlers
//

// PingTelemetry ingests one telemetry event.
//
// Responses:
//   - 201 {message} on first ingestion
//   - 200 {message:"Already processed"} on eventId replay
//   - 400 missing/invalid fields, 404 unknown device, 403 no active
//     subscription, 429 rate limited, 500 internal error
func (h *Handlers) PingTelemetry(c *gin.Context) {
	var req TelemetryPingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing required fields")
		return
	}
	ts, err := time.Parse(time.RFC3339, req.TS)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ts must be an ISO-8601 timestamp")
		return
	}

	out, err := h.telemetrySvc.Ingest(c.Request.Context(), services.TelemetryInput{
		DeviceID: req.DeviceID,
		Metric:   req.Metric,
		Value:    *req.Value,
		Status:   req.Status,
		TS:       ts,
		EventID:  req.EventID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing required fields")
		case errors.Is(err, services.ErrDeviceNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "Device not found")
		case errors.Is(err, services.ErrNoActiveSubscription):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "No active subscription")
		case errors.Is(err, services.ErrRateLimited):
			fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "Rate limit exceeded")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		}
		return
	}

	if out.Replayed {
		message(c, http.StatusOK, "Already processed")
		return
	}
	message(c, http.StatusCreated, "Telemetry recorded successfully")
}
