package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Status represents the main lifecycle status of a shipment.
type Status string

const (
	StatusCreated        Status = "created"
	StatusConfirmed      Status = "confirmed"
	StatusInPickup       Status = "in_pickup"
	StatusInTransit      Status = "in_transit"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusSuccess        Status = "success"
	StatusReturned       Status = "returned"
	StatusCancelled      Status = "cancelled"
)

// SubStatus is a finer-grained phase within one main status.
type SubStatus string

const (
	SubStatusVehicleAssigned    SubStatus = "vehicle_assigned"
	SubStatusVehicleArrived     SubStatus = "vehicle_arrived"
	SubStatusLoadingStarted     SubStatus = "loading_started"
	SubStatusLoadingCompleted   SubStatus = "loading_completed"
	SubStatusOnTime             SubStatus = "on_time"
	SubStatusDelayed            SubStatus = "delayed"
	SubStatusReachedDestination SubStatus = "reached_destination"
	SubStatusUnloadingStarted   SubStatus = "unloading_started"
	SubStatusUnloadingCompleted SubStatus = "unloading_completed"
)

// ChangeSource identifies what triggered a status transition.
type ChangeSource string

const (
	SourceManual   ChangeSource = "manual"
	SourceGeofence ChangeSource = "geofence"
	SourceAPI      ChangeSource = "api"
	SourceSystem   ChangeSource = "system"
)

// Shipment is a unit of cargo moving through the delivery lifecycle.
type Shipment struct {
	ID   string `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	Code string `gorm:"column:code;type:varchar(64);uniqueIndex" json:"code"`

	Origin         string  `gorm:"column:origin;type:varchar(255)" json:"origin"`
	Destination    string  `gorm:"column:destination;type:varchar(255)" json:"destination"`
	ConsigneeName  string  `gorm:"column:consignee_name;type:varchar(128)" json:"consignee_name"`
	ConsigneePhone string  `gorm:"column:consignee_phone;type:varchar(32)" json:"consignee_phone"`
	WeightKg       float64 `gorm:"column:weight_kg" json:"weight_kg"`
	VolumeCbm      float64 `gorm:"column:volume_cbm" json:"volume_cbm"`

	Status    Status    `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	SubStatus SubStatus `gorm:"column:sub_status;type:varchar(32)" json:"sub_status,omitempty"`

	// Derived exception aggregates, recomputed from child records on every mutation.
	ExceptionCount   int  `gorm:"column:exception_count;not null;default:0" json:"exception_count"`
	HasOpenException bool `gorm:"column:has_open_exception;not null;default:false" json:"has_open_exception"`

	// Per-status timestamps, stamped once per transition into that status.
	ConfirmedAt          *time.Time `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	PickupStartedAt      *time.Time `gorm:"column:pickup_started_at" json:"pickup_started_at,omitempty"`
	VehicleAssignedAt    *time.Time `gorm:"column:vehicle_assigned_at" json:"vehicle_assigned_at,omitempty"`
	VehicleArrivedAt     *time.Time `gorm:"column:vehicle_arrived_at" json:"vehicle_arrived_at,omitempty"`
	LoadingStartedAt     *time.Time `gorm:"column:loading_started_at" json:"loading_started_at,omitempty"`
	LoadingCompletedAt   *time.Time `gorm:"column:loading_completed_at" json:"loading_completed_at,omitempty"`
	InTransitAt          *time.Time `gorm:"column:in_transit_at" json:"in_transit_at,omitempty"`
	OutForDeliveryAt     *time.Time `gorm:"column:out_for_delivery_at" json:"out_for_delivery_at,omitempty"`
	ReachedDestinationAt *time.Time `gorm:"column:reached_destination_at" json:"reached_destination_at,omitempty"`
	UnloadingStartedAt   *time.Time `gorm:"column:unloading_started_at" json:"unloading_started_at,omitempty"`
	UnloadingCompletedAt *time.Time `gorm:"column:unloading_completed_at" json:"unloading_completed_at,omitempty"`
	DeliveredAt          *time.Time `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	ReturnedAt           *time.Time `gorm:"column:returned_at" json:"returned_at,omitempty"`
	CancelledAt          *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the shipments table name.
func (Shipment) TableName() string {
	return "shipments"
}

// StatusHistoryEntry is an immutable record of one status transition.
// Entries are append-only and never updated or deleted.
type StatusHistoryEntry struct {
	ID         string `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	ShipmentID string `gorm:"column:shipment_id;type:varchar(64);not null;index" json:"shipment_id"`

	PreviousStatus    Status    `gorm:"column:previous_status;type:varchar(32)" json:"previous_status"`
	NewStatus         Status    `gorm:"column:new_status;type:varchar(32);not null" json:"new_status"`
	PreviousSubStatus SubStatus `gorm:"column:previous_sub_status;type:varchar(32)" json:"previous_sub_status,omitempty"`
	NewSubStatus      SubStatus `gorm:"column:new_sub_status;type:varchar(32)" json:"new_sub_status,omitempty"`

	Source   ChangeSource      `gorm:"column:source;type:varchar(16);not null" json:"source"`
	Notes    string            `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:json" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

// TableName specifies the history table name.
func (StatusHistoryEntry) TableName() string {
	return "shipment_status_history"
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(statusGraph[s]) == 0
}

// MandatoryFieldGaps returns the mandatory fields still missing before the
// shipment can be confirmed. Empty result means the shipment is dispatch-ready.
func (s *Shipment) MandatoryFieldGaps() []string {
	var missing []string
	if s.Origin == "" {
		missing = append(missing, "origin")
	}
	if s.Destination == "" {
		missing = append(missing, "destination")
	}
	if s.ConsigneePhone == "" {
		missing = append(missing, "consignee_phone")
	}
	if s.WeightKg <= 0 {
		missing = append(missing, "weight_kg")
	}
	return missing
}
