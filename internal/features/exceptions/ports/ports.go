package ports

import (
	"context"
	"time"

	"logistics-console/internal/features/exceptions/domain"
	shipmentdomain "logistics-console/internal/features/shipments/domain"
	tripdomain "logistics-console/internal/features/trips/domain"
	tripports "logistics-console/internal/features/trips/ports"
)

// ExceptionRepository is the secondary port for exception storage.
// Exceptions are never physically deleted; there is no delete operation.
type ExceptionRepository interface {
	// GetByID loads an exception. Returns an apperr.KindNotFound error when missing.
	GetByID(ctx context.Context, id string) (*domain.ShipmentException, error)
	// Create persists a new exception.
	Create(ctx context.Context, exception *domain.ShipmentException) error
	// Save persists the current state of an existing exception.
	Save(ctx context.Context, exception *domain.ShipmentException) error
	// ListByShipment returns all exceptions of a shipment, newest first.
	ListByShipment(ctx context.Context, shipmentID string) ([]domain.ShipmentException, error)
	// HasOpenOfType reports whether the shipment has an open or escalated
	// exception of the given type. Used by detectors for deduplication.
	HasOpenOfType(ctx context.Context, shipmentID string, t domain.ExceptionType) (bool, error)
}

// ShipmentStore is the consumer port into shipment storage needed by the
// exception lifecycle: aggregate writes and the reads the detectors require.
type ShipmentStore interface {
	GetByID(ctx context.Context, id string) (*shipmentdomain.Shipment, error)
	// UpdateExceptionAggregates persists the recomputed exception count and
	// open-exception flag on the owning shipment.
	UpdateExceptionAggregates(ctx context.Context, shipmentID string, count int, hasOpen bool) error
	CountActiveTripMappings(ctx context.Context, shipmentID, excludeTripID string) (int64, error)
}

// TripStore is the consumer port into trip storage needed by the detectors.
type TripStore interface {
	GetByID(ctx context.Context, id string) (*tripdomain.Trip, error)
}

// CapacityChecker validates candidate load against trip capacity.
type CapacityChecker interface {
	ValidateCapacity(ctx context.Context, tripID string, candidateWeightKg, candidateVolumeCbm float64) (*tripports.CapacityResult, error)
}

// StatusUpdateRequest carries one requested exception status change.
type StatusUpdateRequest struct {
	NewStatus  domain.ExceptionStatus
	Notes      string
	EscalateTo string
}

// LogRequest carries one exception to record.
type LogRequest struct {
	Type        domain.ExceptionType
	Description string
	// Severity overrides the type's default severity when non-empty.
	Severity domain.Severity
	Metadata map[string]interface{}
}

// DetectorService runs the business-level exception checks. Each returns the
// exception it raised, or nil when the condition is absent or already logged.
type DetectorService interface {
	DetectDuplicateMapping(ctx context.Context, shipmentID string) (*domain.ShipmentException, error)
	DetectVehicleNotArrived(ctx context.Context, shipmentID, tripID string) (*domain.ShipmentException, error)
	DetectCapacityExceeded(ctx context.Context, shipmentID, tripID string) (*domain.ShipmentException, error)
	DetectDelay(ctx context.Context, shipmentID, tripID string, currentETA time.Time) (*domain.ShipmentException, error)
}

// ExceptionService is the primary port exposed to the HTTP layer.
type ExceptionService interface {
	Log(ctx context.Context, shipmentID string, req LogRequest) (*domain.ShipmentException, error)
	UpdateStatus(ctx context.Context, exceptionID string, req StatusUpdateRequest) (*domain.ShipmentException, error)
	ListByShipment(ctx context.Context, shipmentID string) ([]domain.ShipmentException, error)
}
