// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Subscription model, including the entitlement query used by the telemetry
// ingestor.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
)

// HasActiveSubscription reports whether deviceID holds a subscription that is
// active at the given instant: status == "active" AND startDate <= now <=
// endDate. Pure read; callers must pass a freshly evaluated now so that
// entitlement can expire between requests.
func HasActiveSubscription(ctx context.Context, db *gorm.DB, deviceID string, now time.Time) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("device_id = ? AND status = ? AND start_date <= ? AND end_date >= ?",
			deviceID, domain.SubscriptionStatusActive, now, now).
		Count(&total).Error
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

// CreateSubscription inserts a new subscription row with a UUID primary key.
// On success, it returns the persisted Subscription. On failure, it returns
// a DB error.
func CreateSubscription(ctx context.Context, db *gorm.DB, deviceID, planID string, start, end time.Time, status, providerRef string) (*domain.Subscription, error) {
	sub := &domain.Subscription{
		ID:                uuid.NewString(),
		DeviceID:          deviceID,
		PlanID:            planID,
		StartDate:         start,
		EndDate:           end,
		Status:            status,
		ProviderReference: providerRef,
		CreatedAt:         time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}
