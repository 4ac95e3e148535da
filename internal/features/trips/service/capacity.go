package service

import (
	"context"

	"logistics-console/internal/core/logger"
	"logistics-console/internal/features/trips/domain"
	"logistics-console/internal/features/trips/ports"

	"go.uber.org/zap"
)

// CapacityValidator checks cumulative weight/volume of shipments mapped to a
// trip against the vehicle type's capacity envelope.
type CapacityValidator struct {
	trips  ports.TripRepository
	logger *zap.Logger
}

// NewCapacityValidator creates a new CapacityValidator.
func NewCapacityValidator(trips ports.TripRepository) *CapacityValidator {
	return &CapacityValidator{
		trips:  trips,
		logger: logger.With(zap.String("component", "capacity_validator")),
	}
}

// ValidateCapacity sums the load already mapped to the trip, adds the
// candidate shipment, and compares against the vehicle capacity.
//
// Only part-load trips are checked; full-load trips skip entirely. Missing
// capacity data degrades to "skip check, assume valid" rather than blocking
// trip progress. A nil capacity dimension means unconstrained, not zero.
func (v *CapacityValidator) ValidateCapacity(ctx context.Context, tripID string, candidateWeightKg, candidateVolumeCbm float64) (*ports.CapacityResult, error) {
	trip, err := v.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if trip.Freight != domain.FreightPTL {
		return &ports.CapacityResult{Valid: true, Skipped: true}, nil
	}

	capacity, ok := domain.CapacityFor(trip.VehicleType)
	if !ok {
		v.logger.Warn("no capacity data for vehicle type, skipping check",
			zap.String("trip_id", tripID),
			zap.String("vehicle_type", trip.VehicleType),
		)
		return &ports.CapacityResult{Valid: true, Skipped: true}, nil
	}

	mappedWeight, mappedVolume, err := v.trips.MappedLoad(ctx, tripID)
	if err != nil {
		v.logger.Warn("failed to sum mapped load, skipping check",
			zap.String("trip_id", tripID),
			zap.Error(err),
		)
		return &ports.CapacityResult{Valid: true, Skipped: true}, nil
	}

	totalWeight := mappedWeight + candidateWeightKg
	totalVolume := mappedVolume + candidateVolumeCbm

	result := &ports.CapacityResult{Valid: true}

	if capacity.WeightKg != nil && *capacity.WeightKg > 0 {
		result.WeightUtilizationPercent = totalWeight / *capacity.WeightKg * 100
		if totalWeight > *capacity.WeightKg {
			result.Valid = false
		}
	}
	if capacity.VolumeCbm != nil && *capacity.VolumeCbm > 0 {
		result.VolumeUtilizationPercent = totalVolume / *capacity.VolumeCbm * 100
		if totalVolume > *capacity.VolumeCbm {
			result.Valid = false
		}
	}

	if !result.Valid {
		v.logger.Info("capacity exceeded",
			zap.String("trip_id", tripID),
			zap.Float64("weight_utilization_pct", result.WeightUtilizationPercent),
			zap.Float64("volume_utilization_pct", result.VolumeUtilizationPercent),
		)
	}

	return result, nil
}
