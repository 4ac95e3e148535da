package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/features/alerts/domain"

	"gorm.io/gorm"
)

// GormAlertRepository implements ports.AlertRepository on MySQL.
type GormAlertRepository struct {
	db *gorm.DB
}

// NewGormAlertRepository creates a new GormAlertRepository.
func NewGormAlertRepository(db *gorm.DB) *GormAlertRepository {
	return &GormAlertRepository{db: db}
}

// GetByID loads an alert by primary key.
func (r *GormAlertRepository) GetByID(ctx context.Context, id string) (*domain.TripAlert, error) {
	var alert domain.TripAlert
	err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load alert %s: %w", id, err)
	}
	return &alert, nil
}

// Create persists a new alert.
func (r *GormAlertRepository) Create(ctx context.Context, alert *domain.TripAlert) error {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create alert for trip %s: %w", alert.TripID, err)
	}
	return nil
}

// Save persists the current state of an existing alert.
func (r *GormAlertRepository) Save(ctx context.Context, alert *domain.TripAlert) error {
	if err := r.db.WithContext(ctx).Save(alert).Error; err != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, err)
	}
	return nil
}

// ListByTrip returns all alerts of a trip, newest first.
func (r *GormAlertRepository) ListByTrip(ctx context.Context, tripID string) ([]domain.TripAlert, error) {
	var alerts []domain.TripAlert
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("triggered_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for trip %s: %w", tripID, err)
	}
	return alerts, nil
}

// FindActive returns the active alert of the given type, or nil.
func (r *GormAlertRepository) FindActive(ctx context.Context, tripID string, alertType domain.AlertType) (*domain.TripAlert, error) {
	var alert domain.TripAlert
	err := r.db.WithContext(ctx).
		Where("trip_id = ? AND alert_type = ? AND status = ?", tripID, alertType, domain.AlertActive).
		Order("triggered_at DESC").
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active %s alert for trip %s: %w", alertType, tripID, err)
	}
	return &alert, nil
}

// FindActiveSince returns an active alert of the given type triggered at or
// after since, or nil.
func (r *GormAlertRepository) FindActiveSince(ctx context.Context, tripID string, alertType domain.AlertType, since time.Time) (*domain.TripAlert, error) {
	var alert domain.TripAlert
	err := r.db.WithContext(ctx).
		Where("trip_id = ? AND alert_type = ? AND status = ? AND triggered_at >= ?", tripID, alertType, domain.AlertActive, since).
		Order("triggered_at DESC").
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active %s alert for trip %s: %w", alertType, tripID, err)
	}
	return &alert, nil
}

// CountActive counts the trip's alerts in the statuses that feed the
// active-alert aggregate.
func (r *GormAlertRepository) CountActive(ctx context.Context, tripID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.TripAlert{}).
		Where("trip_id = ?", tripID).
		Where("status IN ?", []string{string(domain.AlertActive), string(domain.AlertAcknowledged)}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active alerts for trip %s: %w", tripID, err)
	}
	return int(count), nil
}
