// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Device
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a device is not found, functions return gorm.ErrRecordNotFound
//     (also exported in this package as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
)

// GetDevice fetches a single device by its ID. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetDevice(ctx context.Context, db *gorm.DB, id string) (*domain.Device, error) {
	var d domain.Device
	err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDeviceWithSubscriptions fetches a device and preloads its subscriptions,
// used by the device snapshot endpoint to derive entitlement state.
func GetDeviceWithSubscriptions(ctx context.Context, db *gorm.DB, id string) (*domain.Device, error) {
	var d domain.Device
	err := db.WithContext(ctx).
		Preload("Subscriptions").
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDevices returns the total number of devices for pagination.
func CountDevices(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Device{}).Count(&total).Error
	return total, err
}

// ListDevicesPage returns a paginated slice of devices with their
// subscriptions preloaded, ordered by ID for a stable page sequence. Use
// CountDevices to obtain the total for pagination metadata.
func ListDevicesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Device, error) {
	var out []domain.Device
	err := db.WithContext(ctx).
		Preload("Subscriptions").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateDeviceSnapshot overwrites the snapshot fields of a device to reflect
// the most recently ingested telemetry event. The telemetry ingestor is the
// only caller; lastUpdatedAt carries the event timestamp (ts), not wall-clock
// time. Returns ErrNotFound when no row matched.
func UpdateDeviceSnapshot(ctx context.Context, db *gorm.DB, id, status, metric string, value float64, ts time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Device{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"last_metric":     metric,
			"last_value":      value,
			"last_updated_at": ts,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
