// Package services – DeviceService
//
// Read-only snapshot queries behind GET /device/latest: a single device with
// its entitlement state, or a paginated fleet listing. Entitlement is
// derived from the preloaded subscriptions at the moment of the query, never
// cached.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
	"github.com/tbourn/go-sensorhub-backend/internal/repo"
)

// DeviceSnapshot is the read model served for one device.
type DeviceSnapshot struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Status             string     `json:"status"`
	LastMetric         string     `json:"lastMetric"`
	LastValue          float64    `json:"lastValue"`
	LastUpdatedAt      *time.Time `json:"lastUpdatedAt"`
	SubscriptionActive bool       `json:"subscriptionActive"`
}

// DeviceService serves device snapshot reads.
type DeviceService struct {
	// DB is the GORM handle used for reads.
	DB *gorm.DB

	// now is a clock seam; defaults to time.Now.
	now func() time.Time
}

// Latest returns the snapshot for one device, or ErrDeviceNotFound.
func (s *DeviceService) Latest(ctx context.Context, deviceID string) (*DeviceSnapshot, error) {
	d, err := repo.GetDeviceWithSubscriptions(ctx, s.DB, deviceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	snap := s.snapshot(d)
	return &snap, nil
}

// ListPage returns a page of device snapshots and the fleet total. It
// applies defaults for invalid page/pageSize.
func (s *DeviceService) ListPage(ctx context.Context, page, pageSize int) ([]DeviceSnapshot, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountDevices(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []DeviceSnapshot{}, 0, nil
	}

	devices, err := repo.ListDevicesPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DeviceSnapshot, 0, len(devices))
	for i := range devices {
		out = append(out, s.snapshot(&devices[i]))
	}
	return out, total, nil
}

// snapshot derives the read model, evaluating entitlement at the current
// instant against the preloaded subscriptions.
func (s *DeviceService) snapshot(d *domain.Device) DeviceSnapshot {
	now := s.clock()
	active := false
	for _, sub := range d.Subscriptions {
		if sub.Status == domain.SubscriptionStatusActive &&
			!sub.StartDate.After(now) && !sub.EndDate.Before(now) {
			active = true
			break
		}
	}
	return DeviceSnapshot{
		ID:                 d.ID,
		Name:               d.Name,
		Status:             d.Status,
		LastMetric:         d.LastMetric,
		LastValue:          d.LastValue,
		LastUpdatedAt:      d.LastUpdatedAt,
		SubscriptionActive: active,
	}
}

func (s *DeviceService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
