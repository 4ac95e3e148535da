package adapters

import (
	"context"
	"errors"
	"fmt"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/features/shipments/domain"

	"gorm.io/gorm"
)

// GormShipmentRepository implements ports.ShipmentRepository on MySQL.
type GormShipmentRepository struct {
	db *gorm.DB
}

// NewGormShipmentRepository creates a new GormShipmentRepository.
func NewGormShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// GetByID loads a shipment by primary key.
func (r *GormShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	var shipment domain.Shipment
	err := r.db.WithContext(ctx).First(&shipment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("shipment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shipment %s: %w", id, err)
	}
	return &shipment, nil
}

// Save persists the full shipment row.
func (r *GormShipmentRepository) Save(ctx context.Context, shipment *domain.Shipment) error {
	if err := r.db.WithContext(ctx).Save(shipment).Error; err != nil {
		return fmt.Errorf("failed to save shipment %s: %w", shipment.ID, err)
	}
	return nil
}

// UpdateExceptionAggregates persists the recomputed exception count and
// open-exception flag for a shipment.
func (r *GormShipmentRepository) UpdateExceptionAggregates(ctx context.Context, shipmentID string, count int, hasOpen bool) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Shipment{}).
		Where("id = ?", shipmentID).
		Updates(map[string]interface{}{
			"exception_count":    count,
			"has_open_exception": hasOpen,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update exception aggregates for shipment %s: %w", shipmentID, err)
	}
	return nil
}

// CountActiveTripMappings counts mappings of the shipment to non-terminal
// trips, excluding the given trip id.
func (r *GormShipmentRepository) CountActiveTripMappings(ctx context.Context, shipmentID, excludeTripID string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).
		Table("trip_shipments").
		Joins("JOIN trips ON trips.id = trip_shipments.trip_id").
		Where("trip_shipments.shipment_id = ?", shipmentID).
		Where("trips.status NOT IN ?", []string{"completed", "cancelled"})
	if excludeTripID != "" {
		q = q.Where("trip_shipments.trip_id <> ?", excludeTripID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count trip mappings for shipment %s: %w", shipmentID, err)
	}
	return count, nil
}

// GormHistoryRepository implements ports.HistoryRepository on MySQL.
// History rows are append-only; no update or delete paths exist.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GormHistoryRepository.
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Append writes one immutable history entry.
func (r *GormHistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append history for shipment %s: %w", entry.ShipmentID, err)
	}
	return nil
}

// ListByShipment returns history entries for a shipment, oldest first.
func (r *GormHistoryRepository) ListByShipment(ctx context.Context, shipmentID string) ([]domain.StatusHistoryEntry, error) {
	var entries []domain.StatusHistoryEntry
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history for shipment %s: %w", shipmentID, err)
	}
	return entries, nil
}
