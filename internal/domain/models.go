// Package domain defines the persistence models for devices, subscriptions,
// API clients, telemetry events, and relay logs. These types are mapped with
// GORM and form the core data layer of the SensorHub backend.
package domain

import "time"

// Device represents a provisioned sensor device. The snapshot fields
// (Status, LastMetric, LastValue, LastUpdatedAt) mirror the most recently
// ingested telemetry event and are written only by the telemetry ingestor.
//
// Fields:
//   - ID: externally assigned device identifier (primary key).
//   - Name: human-readable device name (set at provisioning time).
//   - Status: status reported by the latest telemetry event.
//   - LastMetric / LastValue: metric name and value of the latest event.
//   - LastUpdatedAt: event timestamp (ts) of the latest ingested event.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Device struct {
	ID            string     `json:"id"             gorm:"type:varchar(64);primaryKey"`
	Name          string     `json:"name"           gorm:"type:varchar(255);not null"`
	Status        string     `json:"status"         gorm:"type:varchar(32)"`
	LastMetric    string     `json:"last_metric"    gorm:"type:varchar(64)"`
	LastValue     float64    `json:"last_value"`
	LastUpdatedAt *time.Time `json:"last_updated_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Subscriptions are the billing subscriptions attached to this device.
	Subscriptions []Subscription `json:"-" gorm:"foreignKey:DeviceID;references:ID"`
}

// TableName returns the database table name for Device.
func (Device) TableName() string { return "devices" }

// Subscription represents a billed entitlement window for a device. A device
// may accumulate many subscriptions over time; it is entitled at instant t
// when some row has Status == "active" and StartDate <= t <= EndDate.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - DeviceID: foreign key to the owning device (indexed).
//   - PlanID: billing plan identifier (e.g. "yearly").
//   - StartDate / EndDate: entitlement window bounds (inclusive).
//   - Status: "active", "expired", ...
//   - ProviderReference: reference returned by the payment provider.
type Subscription struct {
	ID                string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	DeviceID          string    `json:"device_id"          gorm:"type:varchar(64);not null;index:idx_device_subs"`
	PlanID            string    `json:"plan_id"            gorm:"type:varchar(64);not null"`
	StartDate         time.Time `json:"start_date"         gorm:"not null"`
	EndDate           time.Time `json:"end_date"           gorm:"not null"`
	Status            string    `json:"status"             gorm:"type:varchar(16);not null"`
	ProviderReference string    `json:"provider_reference" gorm:"type:varchar(128)"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// SubscriptionStatusActive is the Status value that makes a subscription
// eligible for entitlement checks.
const SubscriptionStatusActive = "active"

// Client represents a relay API consumer. The APIKey is the bearer credential
// presented via the x-api-key header on /relay/publish.
type Client struct {
	ID        string    `json:"id"      gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"    gorm:"type:varchar(255);not null"`
	APIKey    string    `json:"-"       gorm:"type:varchar(128);not null;uniqueIndex:ux_clients_api_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// TelemetryEvent is an immutable, append-only record of one ingested reading.
// The unique index on EventID is the idempotency anchor: at most one row can
// ever exist per caller-supplied event id, and a concurrent duplicate insert
// loses the race and observes a unique-constraint violation instead.
type TelemetryEvent struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	EventID   string    `json:"event_id"  gorm:"type:varchar(128);not null;uniqueIndex:ux_telemetry_event_id"`
	DeviceID  string    `json:"device_id" gorm:"type:varchar(64);not null;index:idx_telemetry_device"`
	Metric    string    `json:"metric"    gorm:"type:varchar(64);not null"`
	Value     float64   `json:"value"     gorm:"not null"`
	Status    string    `json:"status"    gorm:"type:varchar(32);not null"`
	TS        time.Time `json:"ts"        gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for TelemetryEvent.
func (TelemetryEvent) TableName() string { return "telemetry_events" }

// Relay outcome values recorded in RelayLog.Status.
const (
	RelayStatusSuccess = "success"
	RelayStatusFailed  = "failed"
)

// RelayLog is an immutable, append-only record of one relay publish outcome,
// keyed by the caller-supplied idempotency key (unique index). Replays of the
// same key return this recorded outcome without re-dispatching.
//
// Retries counts the attempts beyond the first (attemptsMade - 1).
type RelayLog struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	IdempotencyKey string    `json:"idempotency_key" gorm:"type:varchar(200);not null;uniqueIndex:ux_relay_idem_key"`
	ClientID       string    `json:"client_id"       gorm:"type:varchar(64);not null;index:idx_relay_client"`
	Message        string    `json:"message"         gorm:"type:text;not null"`
	Meta           string    `json:"meta"            gorm:"type:text"`
	Status         string    `json:"status"          gorm:"type:varchar(16);not null;check:status IN ('success','failed')"`
	Retries        int       `json:"retries"         gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for RelayLog.
func (RelayLog) TableName() string { return "relay_logs" }
