// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only RelayLog model, which anchors outcome replay via the unique
// index on idempotency_key.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
)

// GetRelayLog returns the recorded outcome for key, or ErrNotFound.
func GetRelayLog(ctx context.Context, db *gorm.DB, key string) (*domain.RelayLog, error) {
	var rl domain.RelayLog
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&rl).Error
	if err != nil {
		return nil, err
	}
	return &rl, nil
}

// CreateRelayLog records the final outcome of a dispatch loop and returns
// ErrDuplicate when an outcome for key was recorded concurrently. The caller
// resolves ErrDuplicate by loading the stored row and replaying it; the
// losing writer of the race must not surface an error.
func CreateRelayLog(ctx context.Context, db *gorm.DB, key, clientID, message, meta, status string, retries int) (*domain.RelayLog, error) {
	rl := &domain.RelayLog{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		ClientID:       clientID,
		Message:        message,
		Meta:           meta,
		Status:         status,
		Retries:        retries,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rl).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rl, nil
}
