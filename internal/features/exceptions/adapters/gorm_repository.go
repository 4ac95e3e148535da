package adapters

import (
	"context"
	"errors"
	"fmt"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/features/exceptions/domain"

	"gorm.io/gorm"
)

// GormExceptionRepository implements ports.ExceptionRepository on MySQL.
// Exceptions are historical record; no delete path exists.
type GormExceptionRepository struct {
	db *gorm.DB
}

// NewGormExceptionRepository creates a new GormExceptionRepository.
func NewGormExceptionRepository(db *gorm.DB) *GormExceptionRepository {
	return &GormExceptionRepository{db: db}
}

// GetByID loads an exception by primary key.
func (r *GormExceptionRepository) GetByID(ctx context.Context, id string) (*domain.ShipmentException, error) {
	var exception domain.ShipmentException
	err := r.db.WithContext(ctx).First(&exception, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("exception", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load exception %s: %w", id, err)
	}
	return &exception, nil
}

// Create persists a new exception.
func (r *GormExceptionRepository) Create(ctx context.Context, exception *domain.ShipmentException) error {
	if err := r.db.WithContext(ctx).Create(exception).Error; err != nil {
		return fmt.Errorf("failed to create exception for shipment %s: %w", exception.ShipmentID, err)
	}
	return nil
}

// Save persists the current state of an existing exception.
func (r *GormExceptionRepository) Save(ctx context.Context, exception *domain.ShipmentException) error {
	if err := r.db.WithContext(ctx).Save(exception).Error; err != nil {
		return fmt.Errorf("failed to save exception %s: %w", exception.ID, err)
	}
	return nil
}

// ListByShipment returns all exceptions of a shipment, newest first.
func (r *GormExceptionRepository) ListByShipment(ctx context.Context, shipmentID string) ([]domain.ShipmentException, error) {
	var exceptions []domain.ShipmentException
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("detected_at DESC").
		Find(&exceptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions for shipment %s: %w", shipmentID, err)
	}
	return exceptions, nil
}

// HasOpenOfType reports whether the shipment has an open or escalated
// exception of the given type.
func (r *GormExceptionRepository) HasOpenOfType(ctx context.Context, shipmentID string, t domain.ExceptionType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ShipmentException{}).
		Where("shipment_id = ? AND exception_type = ?", shipmentID, t).
		Where("status IN ?", []string{string(domain.ExceptionOpen), string(domain.ExceptionEscalated)}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check open exceptions for shipment %s: %w", shipmentID, err)
	}
	return count > 0, nil
}
