// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only TelemetryEvent model, which anchors idempotent ingestion via
// the unique index on event_id.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
)

// GetTelemetryEvent returns the event stored for eventID, or ErrNotFound.
func GetTelemetryEvent(ctx context.Context, db *gorm.DB, eventID string) (*domain.TelemetryEvent, error) {
	var ev domain.TelemetryEvent
	err := db.WithContext(ctx).Where("event_id = ?", eventID).First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// CreateTelemetryEvent inserts the record for one ingested reading and
// returns ErrDuplicate when a row for eventID already exists. Callers must
// treat ErrDuplicate as "already processed", not as a failure: it is the
// unique index catching the check-then-insert race.
func CreateTelemetryEvent(ctx context.Context, db *gorm.DB, eventID, deviceID, metric string, value float64, status string, ts time.Time) (*domain.TelemetryEvent, error) {
	ev := &domain.TelemetryEvent{
		ID:        uuid.NewString(),
		EventID:   eventID,
		DeviceID:  deviceID,
		Metric:    metric,
		Value:     value,
		Status:    status,
		TS:        ts,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return ev, nil
}

// CountTelemetryEvents returns the number of stored events for deviceID.
func CountTelemetryEvents(ctx context.Context, db *gorm.DB, deviceID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.TelemetryEvent{}).
		Where("device_id = ?", deviceID).
		Count(&total).Error
	return total, err
}
