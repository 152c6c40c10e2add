// Billing HTTP handlers.
//
// This file exposes the subscription purchase endpoint:
//   - POST /billing/subscribe
//
// A successful charge creates a one-year active subscription and returns the
// subscription resource.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sensorhub-backend/internal/services"
)

// SubscribeRequest is the JSON payload for purchasing a subscription.
type SubscribeRequest struct {
	DeviceID string `json:"deviceId" binding:"required" example:"123"`
	PlanID   string `json:"planId" binding:"required" example:"yearly"`
}

// Subscribe charges the payment provider and activates a subscription.
//
// Responses:
//   - 201 with the created subscription
//   - 400 missing fields, 404 unknown device, 402 payment declined,
//     500 internal error
func (h *Handlers) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing required fields")
		return
	}

	sub, err := h.billingSvc.Subscribe(c.Request.Context(), req.DeviceID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Missing required fields")
		case errors.Is(err, services.ErrDeviceNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "Device not found")
		case errors.Is(err, services.ErrPaymentFailed):
			fail(c, http.StatusPaymentRequired, ErrCodePaymentFailed, "Payment failed")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		}
		return
	}
	ok(c, http.StatusCreated, sub)
}
