package ports

import (
	"context"
	"time"

	"logistics-console/internal/features/alerts/domain"
	trackingdomain "logistics-console/internal/features/tracking/domain"
	tripdomain "logistics-console/internal/features/trips/domain"
)

// AlertRepository manages persistence of trip alerts.
type AlertRepository interface {
	GetByID(ctx context.Context, id string) (*domain.TripAlert, error)
	Create(ctx context.Context, alert *domain.TripAlert) error
	Save(ctx context.Context, alert *domain.TripAlert) error
	ListByTrip(ctx context.Context, tripID string) ([]domain.TripAlert, error)
	// FindActive returns the active alert of the given type for the trip,
	// or nil when there is none.
	FindActive(ctx context.Context, tripID string, alertType domain.AlertType) (*domain.TripAlert, error)
	// FindActiveSince returns an active alert of the given type triggered at or
	// after since, or nil. Used by the stoppage time-window dedup.
	FindActiveSince(ctx context.Context, tripID string, alertType domain.AlertType, since time.Time) (*domain.TripAlert, error)
	// CountActive counts the trip's alerts in statuses that count as active.
	CountActive(ctx context.Context, tripID string) (int, error)
}

// TripStore is the slice of the trips feature the detection engine needs.
type TripStore interface {
	GetByID(ctx context.Context, id string) (*tripdomain.Trip, error)
	UpdateAlertAggregates(ctx context.Context, tripID string, activeCount int) error
	SetTrackable(ctx context.Context, tripID string, trackable bool) error
}

// PointStore is the slice of the tracking feature the detection engine needs.
type PointStore interface {
	Latest(ctx context.Context, tripID string) (*trackingdomain.TrackingPoint, error)
	Recent(ctx context.Context, tripID string, n int) ([]trackingdomain.TrackingPoint, error)
}

// StatusUpdateRequest carries an operator alert-status change.
type StatusUpdateRequest struct {
	NewStatus domain.AlertStatus
	Notes     string
}

// AlertService is the primary port for operator alert operations.
type AlertService interface {
	ListByTrip(ctx context.Context, tripID string) ([]domain.TripAlert, error)
	UpdateStatus(ctx context.Context, alertID string, req StatusUpdateRequest) (*domain.TripAlert, error)
}

// DetectionService is the primary port for the alert detection engine.
type DetectionService interface {
	// Sweep runs the telemetry detectors for a trip; evaluation failures are
	// logged and skipped rather than surfaced.
	Sweep(ctx context.Context, tripID string)
	// CheckDelay evaluates the trip against an externally computed current ETA.
	CheckDelay(ctx context.Context, tripID string, currentETA time.Time) (*domain.TripAlert, error)
	// ConsentRevoked raises the critical consent alert and stops tracking.
	ConsentRevoked(ctx context.Context, tripID string) (*domain.TripAlert, error)
}
