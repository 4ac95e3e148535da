package domain

import (
	"encoding/json"
	"time"

	"logistics-console/internal/core/geo"

	"gorm.io/datatypes"
)

// TripStatus represents the lifecycle status of a trip.
type TripStatus string

const (
	TripStatusCreated    TripStatus = "created"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

// FreightType distinguishes part-load from full-load trips.
type FreightType string

const (
	// FreightPTL is part-load: one vehicle carries multiple shipments and
	// capacity is validated against the shared vehicle.
	FreightPTL FreightType = "ptl"
	// FreightFTL is full-load: the vehicle is dedicated and capacity checks are skipped.
	FreightFTL FreightType = "ftl"
)

// Trip is one vehicle journey carrying mapped shipments.
type Trip struct {
	ID          string      `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	VehicleID   string      `gorm:"column:vehicle_id;type:varchar(64);index" json:"vehicle_id"`
	DriverID    string      `gorm:"column:driver_id;type:varchar(64)" json:"driver_id"`
	VehicleType string      `gorm:"column:vehicle_type;type:varchar(32)" json:"vehicle_type"`
	Freight     FreightType `gorm:"column:freight_type;type:varchar(8);not null;default:'ptl'" json:"freight_type"`
	Status      TripStatus  `gorm:"column:status;type:varchar(16);not null;index" json:"status"`

	PlannedStartTime *time.Time `gorm:"column:planned_start_time" json:"planned_start_time,omitempty"`
	PlannedEndTime   *time.Time `gorm:"column:planned_end_time" json:"planned_end_time,omitempty"`
	PlannedETA       *time.Time `gorm:"column:planned_eta" json:"planned_eta,omitempty"`
	PlannedPickupAt  *time.Time `gorm:"column:planned_pickup_at" json:"planned_pickup_at,omitempty"`

	// PlannedRoute is the planned polyline as a JSON array of {lat,lng} vertices,
	// resolved by the external route source.
	PlannedRoute datatypes.JSON `gorm:"column:planned_route;type:json" json:"planned_route,omitempty"`

	// Aggregates maintained by the alert detection engine.
	ActiveAlertCount int  `gorm:"column:active_alert_count;not null;default:0" json:"active_alert_count"`
	IsTrackable      bool `gorm:"column:is_trackable;not null;default:true" json:"is_trackable"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the trips table name.
func (Trip) TableName() string {
	return "trips"
}

// IsTerminal reports whether the trip can no longer change.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// Route decodes the planned route polyline. Returns nil when no route is set
// or the stored JSON is malformed; deviation checks degrade to a no-op then.
func (t *Trip) Route() []geo.LatLng {
	if len(t.PlannedRoute) == 0 {
		return nil
	}
	var route []geo.LatLng
	if err := json.Unmarshal(t.PlannedRoute, &route); err != nil {
		return nil
	}
	return route
}

// ShipmentMapping links one shipment to one trip.
type ShipmentMapping struct {
	ID         string    `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	TripID     string    `gorm:"column:trip_id;type:varchar(64);not null;index" json:"trip_id"`
	ShipmentID string    `gorm:"column:shipment_id;type:varchar(64);not null;index" json:"shipment_id"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName specifies the mapping table name.
func (ShipmentMapping) TableName() string {
	return "trip_shipments"
}

// VehicleCapacity is the capacity envelope of one vehicle type. Nil fields
// mean the dimension is unconstrained, not zero.
type VehicleCapacity struct {
	WeightKg  *float64
	VolumeCbm *float64
}

// vehicleCapacities is the static capacity table keyed by vehicle type.
var vehicleCapacities = map[string]VehicleCapacity{
	"tata_ace":       {WeightKg: f(750), VolumeCbm: f(4)},
	"pickup_8ft":     {WeightKg: f(1000), VolumeCbm: f(6)},
	"canter_14ft":    {WeightKg: f(3500), VolumeCbm: f(15)},
	"truck_19ft":     {WeightKg: f(7000), VolumeCbm: f(25)},
	"truck_32ft_sxl": {WeightKg: f(9000), VolumeCbm: f(48)},
	"truck_32ft_mxl": {WeightKg: f(16000), VolumeCbm: f(48)},
	// Trailers are constrained on weight only.
	"trailer_40ft": {WeightKg: f(27000)},
}

func f(v float64) *float64 { return &v }

// CapacityFor returns the capacity envelope for a vehicle type.
// ok=false means the vehicle type is unknown and capacity data is unavailable.
func CapacityFor(vehicleType string) (VehicleCapacity, bool) {
	c, ok := vehicleCapacities[vehicleType]
	return c, ok
}
