package ports

import (
	"context"

	"logistics-console/internal/features/shipments/domain"
)

// ShipmentRepository is the secondary port for shipment storage.
type ShipmentRepository interface {
	// GetByID loads a shipment. Returns an apperr.KindNotFound error when missing.
	GetByID(ctx context.Context, id string) (*domain.Shipment, error)
	// Save persists the current state of the shipment.
	Save(ctx context.Context, shipment *domain.Shipment) error
	// CountActiveTripMappings counts trips the shipment is mapped to whose
	// status is non-terminal, excluding the given trip id ("" excludes none).
	CountActiveTripMappings(ctx context.Context, shipmentID, excludeTripID string) (int64, error)
}

// HistoryRepository is the secondary port for the append-only status history log.
type HistoryRepository interface {
	// Append writes one immutable history entry.
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	// ListByShipment returns history entries for a shipment, oldest first.
	ListByShipment(ctx context.Context, shipmentID string) ([]domain.StatusHistoryEntry, error)
}

// StatusService is the primary port exposed to the HTTP layer.
type StatusService interface {
	Transition(ctx context.Context, shipmentID string, req TransitionRequest) (*domain.Shipment, error)
	History(ctx context.Context, shipmentID string) ([]domain.StatusHistoryEntry, error)
	CheckUniqueMapping(ctx context.Context, shipmentID, tripID string) error
}

// TransitionRequest carries one requested status transition.
type TransitionRequest struct {
	NewStatus    domain.Status
	NewSubStatus domain.SubStatus
	Source       domain.ChangeSource
	Notes        string
	Metadata     map[string]interface{}
}
