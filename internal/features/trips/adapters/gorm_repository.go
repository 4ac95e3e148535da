package adapters

import (
	"context"
	"errors"
	"fmt"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/features/trips/domain"

	"gorm.io/gorm"
)

// GormTripRepository implements ports.TripRepository on MySQL.
type GormTripRepository struct {
	db *gorm.DB
}

// NewGormTripRepository creates a new GormTripRepository.
func NewGormTripRepository(db *gorm.DB) *GormTripRepository {
	return &GormTripRepository{db: db}
}

// GetByID loads a trip by primary key.
func (r *GormTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	var trip domain.Trip
	err := r.db.WithContext(ctx).First(&trip, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("trip", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trip %s: %w", id, err)
	}
	return &trip, nil
}

// MappedLoad sums the weight and volume of all shipments mapped to the trip.
func (r *GormTripRepository) MappedLoad(ctx context.Context, tripID string) (float64, float64, error) {
	var load struct {
		WeightKg  float64
		VolumeCbm float64
	}
	err := r.db.WithContext(ctx).
		Table("trip_shipments").
		Select("COALESCE(SUM(shipments.weight_kg), 0) AS weight_kg, COALESCE(SUM(shipments.volume_cbm), 0) AS volume_cbm").
		Joins("JOIN shipments ON shipments.id = trip_shipments.shipment_id").
		Where("trip_shipments.trip_id = ?", tripID).
		Scan(&load).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum mapped load for trip %s: %w", tripID, err)
	}
	return load.WeightKg, load.VolumeCbm, nil
}

// UpdateAlertAggregates persists the recomputed active alert count.
func (r *GormTripRepository) UpdateAlertAggregates(ctx context.Context, tripID string, activeAlertCount int) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Trip{}).
		Where("id = ?", tripID).
		Update("active_alert_count", activeAlertCount).Error
	if err != nil {
		return fmt.Errorf("failed to update alert aggregates for trip %s: %w", tripID, err)
	}
	return nil
}

// SetTrackable flips the trip's trackability flag.
func (r *GormTripRepository) SetTrackable(ctx context.Context, tripID string, trackable bool) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Trip{}).
		Where("id = ?", tripID).
		Update("is_trackable", trackable).Error
	if err != nil {
		return fmt.Errorf("failed to update trackability for trip %s: %w", tripID, err)
	}
	return nil
}
