// Relay HTTP handlers.
//
// This file exposes the relay publish endpoint:
//   - POST /relay/publish (authenticated by x-api-key, idempotent)
//
// A missing credential is rejected here with 401 before the service runs;
// credential resolution against the store happens inside the service and maps
// to 403 when the key matches no client.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sensorhub-backend/internal/services"
)

// apiKeyHeader carries the relay client credential.
const apiKeyHeader = "x-api-key"

// PublishRelayRequest is the JSON payload for a relay publish.
type PublishRelayRequest struct {
	ClientID       string         `json:"clientId" example:"client-1"`
	Message        string         `json:"message" example:"hello downstream"`
	Meta           map[string]any `json:"meta,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey" example:"pub-0001"`
}

// PublishRelay dispatches one message downstream with bounded retries.
//
// Responses:
//   - 201 {message:"Relay successful"} on delivery
//   - 200 {message:"Already processed"} on idempotencyKey replay
//   - 401 missing x-api-key, 403 invalid key, 400 missing fields,
//     429 rate limited, 502 failed after retries, 500 internal error
func (h *Handlers) PublishRelay(c *gin.Context) {
	apiKey := strings.TrimSpace(c.GetHeader(apiKeyHeader))
	if apiKey == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Missing API key")
		return
	}

	// Field presence is the service's concern; a malformed body degrades to
	// empty fields and fails there with the same 400.
	var req PublishRelayRequest
	_ = c.ShouldBindJSON(&req)

	out, err := h.relaySvc.Publish(c.Request.Context(), apiKey, services.PublishInput{
		ClientID:       req.ClientID,
		Message:        req.Message,
		Meta:           req.Meta,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAPIKey):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "Invalid API key")
		case errors.Is(err, services.ErrMissingFields):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing required fields")
		case errors.Is(err, services.ErrRateLimited):
			fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "Rate limit exceeded")
		case errors.Is(err, services.ErrRelayExhausted):
			fail(c, http.StatusBadGateway, ErrCodeRelayFailed, "Failed after retries")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		}
		return
	}

	if out.Replayed {
		// Recorded outcomes replay as 200 regardless of their status; the
		// receiver is never re-invoked.
		message(c, http.StatusOK, "Already processed")
		return
	}
	message(c, http.StatusCreated, "Relay successful")
}
