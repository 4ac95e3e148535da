package ports

import (
	"context"

	"logistics-console/internal/features/trips/domain"
)

// TripRepository is the secondary port for trip storage.
type TripRepository interface {
	// GetByID loads a trip. Returns an apperr.KindNotFound error when missing.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)
	// MappedLoad sums the weight and volume of all shipments mapped to the trip.
	MappedLoad(ctx context.Context, tripID string) (weightKg, volumeCbm float64, err error)
	// UpdateAlertAggregates persists the recomputed active alert count.
	UpdateAlertAggregates(ctx context.Context, tripID string, activeAlertCount int) error
	// SetTrackable flips the trip's trackability flag.
	SetTrackable(ctx context.Context, tripID string, trackable bool) error
}

// CapacityResult reports a capacity validation outcome. Utilization
// percentages are returned on both pass and fail so callers can render
// near-capacity warnings before a hard violation.
type CapacityResult struct {
	Valid bool `json:"valid"`
	// Skipped is true when the check did not apply (full-load trip or missing
	// capacity data) and Valid defaulted to true.
	Skipped                  bool    `json:"skipped"`
	WeightUtilizationPercent float64 `json:"weight_utilization_percent"`
	VolumeUtilizationPercent float64 `json:"volume_utilization_percent"`
}

// CapacityService is the primary port for capacity validation.
type CapacityService interface {
	ValidateCapacity(ctx context.Context, tripID string, candidateWeightKg, candidateVolumeCbm float64) (*CapacityResult, error)
}
