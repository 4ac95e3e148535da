package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/features/alerts/domain"
	"logistics-console/internal/features/alerts/ports"
)

// Operator handles manual alert status changes from the console.
type Operator struct {
	alerts ports.AlertRepository
	trips  ports.TripStore
	logger *zap.Logger
	now    func() time.Time
}

// NewOperator creates the operator alert service.
func NewOperator(alerts ports.AlertRepository, trips ports.TripStore, logger *zap.Logger) *Operator {
	return &Operator{alerts: alerts, trips: trips, logger: logger, now: time.Now}
}

// ListByTrip returns all alerts for a trip, newest first.
func (o *Operator) ListByTrip(ctx context.Context, tripID string) ([]domain.TripAlert, error) {
	return o.alerts.ListByTrip(ctx, tripID)
}

// UpdateStatus applies an operator status change, stamping acknowledged_at or
// resolved_at on the way through, then recomputes the trip's active count.
func (o *Operator) UpdateStatus(ctx context.Context, alertID string, req ports.StatusUpdateRequest) (*domain.TripAlert, error) {
	alert, err := o.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(alert.Status, req.NewStatus) {
		return nil, apperr.Validation("alert status change from %q to %q is not allowed", alert.Status, req.NewStatus).
			With("alert_id", alertID)
	}

	now := o.now()
	switch req.NewStatus {
	case domain.AlertAcknowledged:
		if alert.AcknowledgedAt == nil {
			alert.AcknowledgedAt = &now
		}
	case domain.AlertResolved, domain.AlertDismissed:
		if alert.ResolvedAt == nil {
			alert.ResolvedAt = &now
		}
	}
	alert.Status = req.NewStatus
	if req.Notes != "" {
		if alert.Metadata == nil {
			alert.Metadata = datatypes.JSONMap{}
		}
		alert.Metadata["operator_notes"] = req.Notes
	}

	if err := o.alerts.Save(ctx, alert); err != nil {
		return nil, fmt.Errorf("saving alert status change: %w", err)
	}

	o.logger.Info("trip alert status changed",
		zap.String("alert_id", alertID),
		zap.String("trip_id", alert.TripID),
		zap.String("new_status", string(req.NewStatus)),
	)

	if err := recomputeActiveCount(ctx, o.alerts, o.trips, alert.TripID); err != nil {
		o.logger.Warn("active alert count recompute failed", zap.String("trip_id", alert.TripID), zap.Error(err))
	}
	return alert, nil
}
