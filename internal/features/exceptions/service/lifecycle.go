package service

import (
	"context"
	"fmt"
	"time"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/core/logger"
	"logistics-console/internal/features/exceptions/domain"
	"logistics-console/internal/features/exceptions/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Lifecycle records and transitions shipment exceptions and keeps the owning
// shipment's exception aggregates consistent.
type Lifecycle struct {
	exceptions ports.ExceptionRepository
	shipments  ports.ShipmentStore
	logger     *zap.Logger
	now        func() time.Time
}

// NewLifecycle creates a new exception Lifecycle manager.
func NewLifecycle(exceptions ports.ExceptionRepository, shipments ports.ShipmentStore) *Lifecycle {
	return &Lifecycle{
		exceptions: exceptions,
		shipments:  shipments,
		logger:     logger.With(zap.String("component", "exception_lifecycle")),
		now:        time.Now,
	}
}

// Log records a new open exception against a shipment. The type's default
// severity applies unless the request overrides it.
func (l *Lifecycle) Log(ctx context.Context, shipmentID string, req ports.LogRequest) (*domain.ShipmentException, error) {
	info, ok := domain.InfoFor(req.Type)
	if !ok {
		return nil, apperr.Validation("unknown exception type %q", req.Type).With("shipment_id", shipmentID)
	}

	if _, err := l.shipments.GetByID(ctx, shipmentID); err != nil {
		return nil, err
	}

	severity := info.DefaultSeverity
	if req.Severity != "" {
		severity = req.Severity
	}

	exception := &domain.ShipmentException{
		ID:          uuid.NewString(),
		ShipmentID:  shipmentID,
		Type:        req.Type,
		Status:      domain.ExceptionOpen,
		Severity:    severity,
		Description: req.Description,
		Metadata:    datatypes.JSONMap(req.Metadata),
		DetectedAt:  l.now(),
	}

	if err := l.exceptions.Create(ctx, exception); err != nil {
		return nil, apperr.Persistence(err, "failed to record exception").With("shipment_id", shipmentID)
	}

	if err := l.recomputeAggregates(ctx, shipmentID); err != nil {
		return exception, err
	}

	l.logger.Info("exception logged",
		zap.String("shipment_id", shipmentID),
		zap.String("exception_id", exception.ID),
		zap.String("type", string(req.Type)),
		zap.String("severity", string(severity)),
	)

	return exception, nil
}

// UpdateStatus transitions an exception through its lifecycle, stamping
// exactly one of acknowledged_at/escalated_at/resolved_at. Escalation
// requires a target identifier.
func (l *Lifecycle) UpdateStatus(ctx context.Context, exceptionID string, req ports.StatusUpdateRequest) (*domain.ShipmentException, error) {
	exception, err := l.exceptions.GetByID(ctx, exceptionID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(exception.Status, req.NewStatus) {
		return nil, apperr.Validation("exception status may not change from %q to %q", exception.Status, req.NewStatus).
			With("exception_id", exceptionID)
	}

	at := l.now()
	switch req.NewStatus {
	case domain.ExceptionAcknowledged:
		if exception.AcknowledgedAt == nil {
			exception.AcknowledgedAt = &at
		}
	case domain.ExceptionEscalated:
		if req.EscalateTo == "" {
			return nil, apperr.Validation("escalation requires an escalation target").With("exception_id", exceptionID)
		}
		exception.EscalatedTo = req.EscalateTo
		if exception.EscalatedAt == nil {
			exception.EscalatedAt = &at
		}
	case domain.ExceptionResolved:
		if exception.ResolvedAt == nil {
			exception.ResolvedAt = &at
		}
		if req.Notes != "" {
			exception.ResolutionNotes = req.Notes
		}
	}

	exception.Status = req.NewStatus

	if err := l.exceptions.Save(ctx, exception); err != nil {
		return nil, apperr.Persistence(err, "failed to update exception").With("exception_id", exceptionID)
	}

	if err := l.recomputeAggregates(ctx, exception.ShipmentID); err != nil {
		return exception, err
	}

	l.logger.Info("exception status updated",
		zap.String("exception_id", exceptionID),
		zap.String("shipment_id", exception.ShipmentID),
		zap.String("new_status", string(req.NewStatus)),
	)

	return exception, nil
}

// ListByShipment returns all exceptions of a shipment, newest first.
func (l *Lifecycle) ListByShipment(ctx context.Context, shipmentID string) ([]domain.ShipmentException, error) {
	exceptions, err := l.exceptions.ListByShipment(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list exceptions: %w", err)
	}
	return exceptions, nil
}

// recomputeAggregates re-derives the shipment's exception count and open flag
// from a fresh read of all its exceptions. Aggregates are never incrementally
// patched; deriving from the child records keeps concurrent writers from
// drifting the totals.
func (l *Lifecycle) recomputeAggregates(ctx context.Context, shipmentID string) error {
	exceptions, err := l.exceptions.ListByShipment(ctx, shipmentID)
	if err != nil {
		return apperr.Persistence(err, "failed to reread exceptions for aggregates").With("shipment_id", shipmentID)
	}

	hasOpen := false
	for _, e := range exceptions {
		if e.Status.IsOpen() {
			hasOpen = true
			break
		}
	}

	if err := l.shipments.UpdateExceptionAggregates(ctx, shipmentID, len(exceptions), hasOpen); err != nil {
		return apperr.Persistence(err, "failed to persist exception aggregates").With("shipment_id", shipmentID)
	}
	return nil
}
