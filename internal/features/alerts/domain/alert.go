package domain

import (
	"time"

	exceptiondomain "logistics-console/internal/features/exceptions/domain"

	"gorm.io/datatypes"
)

// AlertType is the closed enumeration of telemetry alert categories.
type AlertType string

const (
	AlertRouteDeviation AlertType = "route_deviation"
	AlertStoppage       AlertType = "stoppage"
	AlertTrackingLost   AlertType = "tracking_lost"
	AlertDelayWarning   AlertType = "delay_warning"
	AlertConsentRevoked AlertType = "consent_revoked"
)

// AlertStatus is the lifecycle status of a trip alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertDismissed    AlertStatus = "dismissed"
)

// Severity is shared with the exception taxonomy.
type Severity = exceptiondomain.Severity

const (
	SeverityLow      = exceptiondomain.SeverityLow
	SeverityMedium   = exceptiondomain.SeverityMedium
	SeverityHigh     = exceptiondomain.SeverityHigh
	SeverityCritical = exceptiondomain.SeverityCritical
)

// CountsAsActive reports whether the status counts toward the trip's
// active alert aggregate.
func (s AlertStatus) CountsAsActive() bool {
	return s == AlertActive || s == AlertAcknowledged
}

// statusGraph is the allowed operator transitions. Resolved and dismissed
// alerts are terminal.
var statusGraph = map[AlertStatus][]AlertStatus{
	AlertActive:       {AlertAcknowledged, AlertResolved, AlertDismissed},
	AlertAcknowledged: {AlertResolved, AlertDismissed},
	AlertResolved:     {},
	AlertDismissed:    {},
}

// CanTransition reports whether an alert may move from one status to another.
func CanTransition(from, to AlertStatus) bool {
	for _, allowed := range statusGraph[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TripAlert is one operational telemetry signal tied to one trip.
// At most one active alert of a given (trip, type) pair should exist at a time.
type TripAlert struct {
	ID     string `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	TripID string `gorm:"column:trip_id;type:varchar(64);not null;index:idx_trip_type_status" json:"trip_id"`

	Type     AlertType   `gorm:"column:alert_type;type:varchar(32);not null;index:idx_trip_type_status" json:"alert_type"`
	Status   AlertStatus `gorm:"column:status;type:varchar(16);not null;index:idx_trip_type_status" json:"status"`
	Severity Severity    `gorm:"column:severity;type:varchar(16);not null" json:"severity"`

	Message        string  `gorm:"column:message;type:text" json:"message"`
	ThresholdValue float64 `gorm:"column:threshold_value" json:"threshold_value"`
	ActualValue    float64 `gorm:"column:actual_value" json:"actual_value"`

	// Geolocation of the triggering event, when known.
	Latitude  *float64 `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude *float64 `gorm:"column:longitude" json:"longitude,omitempty"`

	Metadata datatypes.JSONMap `gorm:"column:metadata;type:json" json:"metadata,omitempty"`

	TriggeredAt    time.Time  `gorm:"column:triggered_at;not null;index" json:"triggered_at"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the alerts table name.
func (TripAlert) TableName() string {
	return "trip_alerts"
}
