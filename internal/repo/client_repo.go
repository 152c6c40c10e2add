// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Client
// model used by relay credential resolution.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
)

// GetClientByAPIKey resolves an x-api-key credential to its Client row via
// the unique index on api_key. Returns ErrNotFound for unknown keys.
func GetClientByAPIKey(ctx context.Context, db *gorm.DB, apiKey string) (*domain.Client, error) {
	var c domain.Client
	err := db.WithContext(ctx).Where("api_key = ?", apiKey).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
