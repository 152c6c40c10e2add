// Package services – EntitlementGate
//
// The gate answers one question: does this device hold an active subscription
// right now? It is a pure read over the subscriptions table and carries no
// cache: entitlement can lapse between two requests, so the instant of
// evaluation is supplied per call and never reused.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/repo"
)

// EntitlementGate decides whether a device is entitled to ingest telemetry.
type EntitlementGate struct {
	// DB is the GORM handle used for subscription reads.
	DB *gorm.DB
}

// IsEntitled reports whether deviceID has a subscription with status
// "active" whose [startDate, endDate] window contains now.
func (g *EntitlementGate) IsEntitled(ctx context.Context, deviceID string, now time.Time) (bool, error) {
	return repo.HasActiveSubscription(ctx, g.DB, deviceID, now)
}
