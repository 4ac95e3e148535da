package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ExceptionType is the closed enumeration of operational problem categories.
type ExceptionType string

const (
	ExceptionDuplicateTripMapping ExceptionType = "duplicate_trip_mapping"
	ExceptionVehicleNotArrived    ExceptionType = "vehicle_not_arrived"
	ExceptionCapacityExceeded     ExceptionType = "capacity_exceeded"
	ExceptionDelay                ExceptionType = "delay"
	ExceptionDamage               ExceptionType = "damage"
	ExceptionDocumentMissing      ExceptionType = "document_missing"
	ExceptionAddressIssue         ExceptionType = "address_issue"
	ExceptionOther                ExceptionType = "other"
)

// ExceptionStatus is the lifecycle status of an exception.
type ExceptionStatus string

const (
	ExceptionOpen         ExceptionStatus = "open"
	ExceptionAcknowledged ExceptionStatus = "acknowledged"
	ExceptionEscalated    ExceptionStatus = "escalated"
	ExceptionResolved     ExceptionStatus = "resolved"
)

// Severity grades how serious an exception or alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// TypeInfo carries the static metadata of one exception type.
type TypeInfo struct {
	// DefaultSeverity applies when the caller does not override severity.
	DefaultSeverity Severity
	// ResolutionPath is the canned operator guidance for this type.
	ResolutionPath string
}

// typeTable is the static lookup table of exception type metadata.
var typeTable = map[ExceptionType]TypeInfo{
	ExceptionDuplicateTripMapping: {
		DefaultSeverity: SeverityHigh,
		ResolutionPath:  "Remove the shipment from all but one active trip, then re-run dispatch validation.",
	},
	ExceptionVehicleNotArrived: {
		DefaultSeverity: SeverityMedium,
		ResolutionPath:  "Contact the driver; reassign the vehicle if unreachable past the grace window.",
	},
	ExceptionCapacityExceeded: {
		DefaultSeverity: SeverityHigh,
		ResolutionPath:  "Move the overflow shipments to another trip or upgrade the vehicle type.",
	},
	ExceptionDelay: {
		DefaultSeverity: SeverityMedium,
		ResolutionPath:  "Re-plan the route and notify the consignee of the revised ETA.",
	},
	ExceptionDamage: {
		DefaultSeverity: SeverityHigh,
		ResolutionPath:  "Document the damage with photos and open a claim with the carrier.",
	},
	ExceptionDocumentMissing: {
		DefaultSeverity: SeverityMedium,
		ResolutionPath:  "Collect the missing document from the shipper before the next checkpoint.",
	},
	ExceptionAddressIssue: {
		DefaultSeverity: SeverityMedium,
		ResolutionPath:  "Verify the delivery address with the consignee and update the shipment.",
	},
	ExceptionOther: {
		DefaultSeverity: SeverityLow,
		ResolutionPath:  "Review manually and reclassify if a specific type applies.",
	},
}

// InfoFor returns the static metadata for an exception type.
// ok=false means the type is not part of the closed enumeration.
func InfoFor(t ExceptionType) (TypeInfo, bool) {
	info, ok := typeTable[t]
	return info, ok
}

// statusGraph is the allowed-transition adjacency map for exception statuses.
var statusGraph = map[ExceptionStatus][]ExceptionStatus{
	ExceptionOpen:         {ExceptionAcknowledged, ExceptionEscalated, ExceptionResolved},
	ExceptionAcknowledged: {ExceptionEscalated, ExceptionResolved},
	ExceptionEscalated:    {ExceptionResolved},
	ExceptionResolved:     {},
}

// CanTransition reports whether the exception status graph has an edge from → to.
func CanTransition(from, to ExceptionStatus) bool {
	for _, next := range statusGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOpen reports whether the status counts toward the owning shipment's
// "has open exception" aggregate.
func (s ExceptionStatus) IsOpen() bool {
	return s == ExceptionOpen || s == ExceptionEscalated
}

// ShipmentException is one operational problem tied to one shipment.
// Exceptions are historical record and are never physically deleted.
type ShipmentException struct {
	ID         string `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	ShipmentID string `gorm:"column:shipment_id;type:varchar(64);not null;index" json:"shipment_id"`

	Type        ExceptionType   `gorm:"column:exception_type;type:varchar(32);not null;index" json:"exception_type"`
	Status      ExceptionStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Severity    Severity        `gorm:"column:severity;type:varchar(16);not null" json:"severity"`
	Description string          `gorm:"column:description;type:text" json:"description"`

	ResolutionNotes string `gorm:"column:resolution_notes;type:text" json:"resolution_notes,omitempty"`
	EscalatedTo     string `gorm:"column:escalated_to;type:varchar(64)" json:"escalated_to,omitempty"`

	Metadata datatypes.JSONMap `gorm:"column:metadata;type:json" json:"metadata,omitempty"`

	DetectedAt     time.Time  `gorm:"column:detected_at;not null" json:"detected_at"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	EscalatedAt    *time.Time `gorm:"column:escalated_at" json:"escalated_at,omitempty"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the exceptions table name.
func (ShipmentException) TableName() string {
	return "shipment_exceptions"
}
