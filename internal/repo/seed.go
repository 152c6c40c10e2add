// Package repo – development seeding.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
)

// Seed inserts the development fixtures: one test device and one relay
// client with a well-known API key. Inserts are idempotent (do nothing on
// conflict) so the server can seed on every start.
func Seed(ctx context.Context, db *gorm.DB) error {
	dev := &domain.Device{ID: "123", Name: "Test Device", Status: "OK"}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(dev).Error; err != nil {
		return err
	}

	cl := &domain.Client{ID: "client-1", Name: "Test Client", APIKey: "test-api-key"}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cl).Error
}
