// Mock provider HTTP handlers.
//
// This file exposes the local stand-ins for external collaborators:
//   - POST /mock-relay/receive (downstream relay receiver)
//   - POST /mock-pay/charge    (payment provider)
//
// Each endpoint consults an injected fault strategy instead of ambient
// randomness, so integration tests can script deterministic sequences.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-sensorhub-backend/internal/faults"
	"github.com/tbourn/go-sensorhub-backend/internal/http/middleware"
)

// MockHandlers groups the simulated external providers.
type MockHandlers struct {
	// Relay decides failure for /mock-relay/receive; nil never fails.
	Relay faults.Injector
	// Pay decides failure for /mock-pay/charge; nil never fails.
	Pay faults.Injector
}

// ChargeResponse is the mock payment provider's success body.
type ChargeResponse struct {
	Success           bool   `json:"success"`
	ProviderReference string `json:"providerReference"`
}

// ReceiveRelay simulates the downstream receiver. It acknowledges the
// delivery or fails with 500 per the injected strategy.
func (m *MockHandlers) ReceiveRelay(c *gin.Context) {
	if m.Relay != nil && m.Relay.ShouldFail() {
		middleware.LoggerFrom(c).Warn().Msg("mock relay receiver failing delivery")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Simulated receiver failure")
		return
	}
	message(c, http.StatusOK, "Relay received")
}

// Charge simulates the payment provider. It approves with a fresh provider
// reference or fails with 500 per the injected strategy.
func (m *MockHandlers) Charge(c *gin.Context) {
	if m.Pay != nil && m.Pay.ShouldFail() {
		middleware.LoggerFrom(c).Warn().Msg("mock payment provider declining charge")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Simulated payment failure")
		return
	}
	ok(c, http.StatusOK, ChargeResponse{Success: true, ProviderReference: uuid.NewString()})
}
