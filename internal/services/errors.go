// Package services defines the business logic for telemetry ingestion, relay
// dispatch, billing, and device snapshots. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrMissingFields is returned when a request omits a required field.
	// Note that a telemetry value of numeric zero is a present field, not a
	// missing one; presence is checked with identity, not truthiness.
	ErrMissingFields = errors.New("missing required fields")

	// ErrDeviceNotFound indicates that the referenced device does not exist.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrNoActiveSubscription is returned when a device exists but holds no
	// subscription active at the moment of the entitlement check.
	ErrNoActiveSubscription = errors.New("device has no active subscription")

	// ErrRateLimited is returned when the fixed-window admission check denies
	// the request. The denied call still counted against the window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when an x-api-key credential resolves to
	// no known client. Distinct from a missing credential, which the handler
	// rejects before the service is invoked.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrRelayExhausted is returned when every dispatch attempt failed with a
	// server-side (5xx) response. The outcome is still recorded; the caller
	// receives a distinguishable "failed after retries" result, not a
	// generic error.
	ErrRelayExhausted = errors.New("failed after retries")

	// ErrPaymentFailed is returned when the payment provider declines a
	// subscription charge.
	ErrPaymentFailed = errors.New("payment failed")
)
