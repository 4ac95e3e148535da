package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/core/logger"
	"logistics-console/internal/features/shipments/domain"
	"logistics-console/internal/features/shipments/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// StatusMachine validates and applies shipment status transitions, stamps the
// per-status timestamps and appends one immutable history entry per transition.
type StatusMachine struct {
	shipments ports.ShipmentRepository
	history   ports.HistoryRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewStatusMachine creates a new StatusMachine.
func NewStatusMachine(shipments ports.ShipmentRepository, history ports.HistoryRepository) *StatusMachine {
	return &StatusMachine{
		shipments: shipments,
		history:   history,
		logger:    logger.With(zap.String("component", "status_machine")),
		now:       time.Now,
	}
}

// Transition applies one status or sub-status transition to a shipment.
//
// The shipment mutation and the history append form one logical unit: if the
// shipment write fails the transition is not applied; if only the history
// append fails, the mutation stands as authoritative and the failure is
// surfaced to the caller as a persistence error.
func (m *StatusMachine) Transition(ctx context.Context, shipmentID string, req ports.TransitionRequest) (*domain.Shipment, error) {
	shipment, err := m.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	if err := m.validate(shipment, req); err != nil {
		return nil, err
	}

	entry := &domain.StatusHistoryEntry{
		ID:                uuid.NewString(),
		ShipmentID:        shipment.ID,
		PreviousStatus:    shipment.Status,
		NewStatus:         req.NewStatus,
		PreviousSubStatus: shipment.SubStatus,
		NewSubStatus:      req.NewSubStatus,
		Source:            req.Source,
		Notes:             req.Notes,
		Metadata:          datatypes.JSONMap(req.Metadata),
		CreatedAt:         m.now(),
	}

	domain.ApplyTransition(shipment, req.NewStatus, req.NewSubStatus, entry.CreatedAt)

	if err := m.shipments.Save(ctx, shipment); err != nil {
		return nil, apperr.Persistence(err, "failed to save shipment transition").With("shipment_id", shipmentID)
	}

	if err := m.history.Append(ctx, entry); err != nil {
		// The shipment write already succeeded and stays authoritative.
		m.logger.Error("history append failed after shipment mutation",
			zap.String("shipment_id", shipmentID),
			zap.Error(err),
		)
		return shipment, apperr.Persistence(err, "transition applied but history logging failed").With("shipment_id", shipmentID)
	}

	m.logger.Info("shipment transition applied",
		zap.String("shipment_id", shipmentID),
		zap.String("previous_status", string(entry.PreviousStatus)),
		zap.String("new_status", string(entry.NewStatus)),
		zap.String("new_sub_status", string(entry.NewSubStatus)),
		zap.String("source", string(entry.Source)),
	)

	return shipment, nil
}

// validate checks the requested transition against the status graph and the
// sub-status progression rules.
func (m *StatusMachine) validate(shipment *domain.Shipment, req ports.TransitionRequest) error {
	if !domain.IsKnownStatus(req.NewStatus) {
		return apperr.Validation("unknown status %q", req.NewStatus).With("shipment_id", shipment.ID)
	}

	if req.NewStatus == shipment.Status {
		// Sub-status advance within the current status.
		if req.NewSubStatus == "" {
			return apperr.Validation("transition to the current status requires a sub-status").
				With("shipment_id", shipment.ID)
		}
		newIdx, ok := domain.SubStatusIndex(req.NewStatus, req.NewSubStatus)
		if !ok {
			return apperr.Validation("sub-status %q is not valid for status %q", req.NewSubStatus, req.NewStatus).
				With("shipment_id", shipment.ID)
		}
		if shipment.SubStatus != "" {
			curIdx, ok := domain.SubStatusIndex(shipment.Status, shipment.SubStatus)
			if ok && newIdx < curIdx {
				return apperr.Validation("sub-status may not regress from %q to %q", shipment.SubStatus, req.NewSubStatus).
					With("shipment_id", shipment.ID)
			}
		}
		return nil
	}

	if !domain.CanTransition(shipment.Status, req.NewStatus) {
		return apperr.Validation("transition from %q to %q is not allowed", shipment.Status, req.NewStatus).
			With("shipment_id", shipment.ID)
	}

	if req.NewSubStatus != "" {
		if _, ok := domain.SubStatusIndex(req.NewStatus, req.NewSubStatus); !ok {
			return apperr.Validation("sub-status %q is not valid for status %q", req.NewSubStatus, req.NewStatus).
				With("shipment_id", shipment.ID)
		}
	}

	// Confirmation requires the dispatch-mandatory fields to be present.
	if shipment.Status == domain.StatusCreated && req.NewStatus == domain.StatusConfirmed {
		if missing := shipment.MandatoryFieldGaps(); len(missing) > 0 {
			return apperr.Validation("missing required fields: %s", strings.Join(missing, ", ")).
				With("shipment_id", shipment.ID)
		}
	}

	return nil
}

// History returns the status history for a shipment, oldest first.
func (m *StatusMachine) History(ctx context.Context, shipmentID string) ([]domain.StatusHistoryEntry, error) {
	entries, err := m.history.ListByShipment(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load status history: %w", err)
	}
	return entries, nil
}

// CheckUniqueMapping verifies the shipment is not already actively mapped to a
// non-terminal trip other than the given one.
func (m *StatusMachine) CheckUniqueMapping(ctx context.Context, shipmentID, tripID string) error {
	count, err := m.shipments.CountActiveTripMappings(ctx, shipmentID, tripID)
	if err != nil {
		return fmt.Errorf("service: failed to count trip mappings: %w", err)
	}
	if count > 0 {
		return apperr.Validation("shipment is already mapped to an active trip").
			With("shipment_id", shipmentID).
			With("trip_id", tripID)
	}
	return nil
}
