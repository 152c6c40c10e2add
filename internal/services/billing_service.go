// Package services – BillingService
//
// This file implements the subscription purchase flow behind
// POST /billing/subscribe. The payment provider is an injected Charger port;
// the shipped server wires the mock provider (with its fault injector), and
// tests wire deterministic fakes. A successful charge creates a one-year
// active subscription for the device.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
	"github.com/tbourn/go-sensorhub-backend/internal/repo"
)

// subscriptionTerm is the entitlement window granted per successful charge.
const subscriptionTermYears = 1

// ChargeResult is the payment provider's answer to a charge request.
type ChargeResult struct {
	// Approved is false when the provider declined or failed the charge.
	Approved bool
	// ProviderReference identifies the charge on the provider side; recorded
	// on the subscription for reconciliation.
	ProviderReference string
}

// Charger is the payment provider port.
type Charger interface {
	Charge(ctx context.Context, deviceID, planID string) (ChargeResult, error)
}

// BillingService creates subscriptions after charging the payment provider.
type BillingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Charger is the payment provider port.
	Charger Charger

	// now is a clock seam; defaults to time.Now.
	now func() time.Time
}

// Subscribe charges the provider for (deviceID, planID) and, on approval,
// persists an active subscription running from now for one year.
//
// Error mapping (performed by the handler):
//   - ErrMissingFields: deviceID or planID absent (400).
//   - ErrDeviceNotFound: no device row for deviceID (404).
//   - ErrPaymentFailed: provider declined the charge (402).
func (s *BillingService) Subscribe(ctx context.Context, deviceID, planID string) (*domain.Subscription, error) {
	if strings.TrimSpace(deviceID) == "" || strings.TrimSpace(planID) == "" {
		return nil, ErrMissingFields
	}

	if _, err := repo.GetDevice(ctx, s.DB, deviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	res, err := s.Charger.Charge(ctx, deviceID, planID)
	if err != nil {
		return nil, err
	}
	if !res.Approved {
		return nil, ErrPaymentFailed
	}

	now := s.clock()
	return repo.CreateSubscription(ctx, s.DB, deviceID, planID,
		now, now.AddDate(subscriptionTermYears, 0, 0),
		domain.SubscriptionStatusActive, res.ProviderReference)
}

func (s *BillingService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
