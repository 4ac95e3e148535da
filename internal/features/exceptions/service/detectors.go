package service

import (
	"context"
	"fmt"
	"time"

	alertdomain "logistics-console/internal/features/alerts/domain"
	"logistics-console/internal/features/exceptions/domain"
	"logistics-console/internal/features/exceptions/ports"

	"go.uber.org/zap"
)

// Detectors run the business-level exception checks on top of the Lifecycle
// primitive. Each detector dedupes on an existing open exception of its type
// before logging a new one.
type Detectors struct {
	lifecycle  *Lifecycle
	exceptions ports.ExceptionRepository
	shipments  ports.ShipmentStore
	trips      ports.TripStore
	capacity   ports.CapacityChecker

	// ArrivalGrace is how late a vehicle may be at pickup before an exception
	// is raised; severity escalates to high at twice the grace window.
	ArrivalGrace time.Duration
	// DelayThresholdPercent is shared with the alert detection engine.
	DelayThresholdPercent float64

	now func() time.Time
}

// NewDetectors creates the exception detector set.
func NewDetectors(lifecycle *Lifecycle, exceptions ports.ExceptionRepository, shipments ports.ShipmentStore, trips ports.TripStore, capacity ports.CapacityChecker, arrivalGrace time.Duration, delayThresholdPercent float64) *Detectors {
	return &Detectors{
		lifecycle:             lifecycle,
		exceptions:            exceptions,
		shipments:             shipments,
		trips:                 trips,
		capacity:              capacity,
		ArrivalGrace:          arrivalGrace,
		DelayThresholdPercent: delayThresholdPercent,
		now:                   time.Now,
	}
}

// DetectDuplicateMapping logs an exception when the shipment is mapped to more
// than one non-terminal trip.
func (d *Detectors) DetectDuplicateMapping(ctx context.Context, shipmentID string) (*domain.ShipmentException, error) {
	count, err := d.shipments.CountActiveTripMappings(ctx, shipmentID, "")
	if err != nil {
		return nil, fmt.Errorf("detector: failed to count trip mappings: %w", err)
	}
	if count <= 1 {
		return nil, nil
	}

	return d.logDeduped(ctx, shipmentID, ports.LogRequest{
		Type:        domain.ExceptionDuplicateTripMapping,
		Description: fmt.Sprintf("shipment is mapped to %d active trips", count),
		Metadata:    map[string]interface{}{"active_trip_count": count},
	})
}

// DetectVehicleNotArrived logs an exception when the trip's planned pickup
// time has passed the grace window without the vehicle arriving. Severity
// escalates to high beyond twice the grace window.
func (d *Detectors) DetectVehicleNotArrived(ctx context.Context, shipmentID, tripID string) (*domain.ShipmentException, error) {
	shipment, err := d.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.VehicleArrivedAt != nil {
		return nil, nil
	}

	trip, err := d.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.PlannedPickupAt == nil {
		// No planned pickup time configured; nothing to measure against.
		return nil, nil
	}

	elapsed := d.now().Sub(*trip.PlannedPickupAt)
	if elapsed < d.ArrivalGrace {
		return nil, nil
	}

	severity := domain.SeverityMedium
	if elapsed >= 2*d.ArrivalGrace {
		severity = domain.SeverityHigh
	}

	return d.logDeduped(ctx, shipmentID, ports.LogRequest{
		Type:        domain.ExceptionVehicleNotArrived,
		Description: fmt.Sprintf("vehicle has not arrived at pickup %.0f minutes past plan", elapsed.Minutes()),
		Severity:    severity,
		Metadata: map[string]interface{}{
			"trip_id":         tripID,
			"minutes_elapsed": elapsed.Minutes(),
		},
	})
}

// DetectCapacityExceeded logs an exception when mapping the shipment to the
// trip would exceed vehicle capacity. A failed capacity evaluation degrades
// to no exception rather than failing the caller.
func (d *Detectors) DetectCapacityExceeded(ctx context.Context, shipmentID, tripID string) (*domain.ShipmentException, error) {
	shipment, err := d.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	result, err := d.capacity.ValidateCapacity(ctx, tripID, shipment.WeightKg, shipment.VolumeCbm)
	if err != nil {
		d.lifecycle.logger.Warn("capacity evaluation failed, skipping detector",
			zap.String("trip_id", tripID),
			zap.Error(err),
		)
		return nil, nil
	}
	if result.Valid {
		return nil, nil
	}

	return d.logDeduped(ctx, shipmentID, ports.LogRequest{
		Type: domain.ExceptionCapacityExceeded,
		Description: fmt.Sprintf("mapping the shipment puts the vehicle at %.0f%% weight and %.0f%% volume utilization",
			result.WeightUtilizationPercent, result.VolumeUtilizationPercent),
		Metadata: map[string]interface{}{
			"trip_id":                    tripID,
			"weight_utilization_percent": result.WeightUtilizationPercent,
			"volume_utilization_percent": result.VolumeUtilizationPercent,
		},
	})
}

// DetectDelay logs a delay exception when the trip has slipped past the
// shared delay tolerance. The baseline is the planned ETA, falling back to
// the planned end time.
func (d *Detectors) DetectDelay(ctx context.Context, shipmentID, tripID string, currentETA time.Time) (*domain.ShipmentException, error) {
	trip, err := d.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	baseline := trip.PlannedETA
	if baseline == nil {
		baseline = trip.PlannedEndTime
	}
	if baseline == nil {
		return nil, nil
	}

	assessment := alertdomain.EvaluateDelay(*baseline, currentETA, d.now(), d.DelayThresholdPercent)
	if !assessment.Delayed {
		return nil, nil
	}

	description := fmt.Sprintf("trip is running %.0f%% over the planned remaining time", assessment.DelayPercent)
	if assessment.PastDue {
		description = fmt.Sprintf("trip is %.0f minutes past its planned ETA", assessment.DelayMinutes)
	}

	return d.logDeduped(ctx, shipmentID, ports.LogRequest{
		Type:        domain.ExceptionDelay,
		Description: description,
		Severity:    domain.Severity(alertdomain.DelaySeverity(assessment)),
		Metadata: map[string]interface{}{
			"trip_id":       tripID,
			"past_due":      assessment.PastDue,
			"delay_minutes": assessment.DelayMinutes,
			"delay_percent": assessment.DelayPercent,
		},
	})
}

// logDeduped logs the exception unless an open or escalated one of the same
// type already exists for the shipment.
func (d *Detectors) logDeduped(ctx context.Context, shipmentID string, req ports.LogRequest) (*domain.ShipmentException, error) {
	exists, err := d.exceptions.HasOpenOfType(ctx, shipmentID, req.Type)
	if err != nil {
		return nil, fmt.Errorf("detector: dedup check failed: %w", err)
	}
	if exists {
		return nil, nil
	}
	return d.lifecycle.Log(ctx, shipmentID, req)
}
