// Package services – mock payment provider.
package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/tbourn/go-sensorhub-backend/internal/faults"
)

// MockCharger simulates a payment provider. Whether a charge is approved is
// decided by the injected fault strategy, replacing the ambient randomness
// of a real sandbox with something tests can script.
type MockCharger struct {
	// Injector decides failure per charge; nil never fails.
	Injector faults.Injector
}

// Charge approves unless the injector says otherwise, minting a fresh
// provider reference per approval.
func (m *MockCharger) Charge(_ context.Context, _, _ string) (ChargeResult, error) {
	if m.Injector != nil && m.Injector.ShouldFail() {
		return ChargeResult{}, nil
	}
	return ChargeResult{Approved: true, ProviderReference: uuid.NewString()}, nil
}
