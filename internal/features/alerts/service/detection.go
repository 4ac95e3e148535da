package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"logistics-console/internal/core/geo"
	"logistics-console/internal/features/alerts/domain"
	"logistics-console/internal/features/alerts/ports"
	trackingdomain "logistics-console/internal/features/tracking/domain"
	tripdomain "logistics-console/internal/features/trips/domain"
)

// recentWindow caps how many trailing points the stoppage walk inspects.
const recentWindow = 60

// Detection runs the telemetry detectors. Each detector re-reads current
// state from the store, evaluates, and dedupes before creating an alert.
// The dedup is check-then-act without a lock; an occasional duplicate is
// accepted and reconciled by the next sweep.
type Detection struct {
	alerts ports.AlertRepository
	trips  ports.TripStore
	points ports.PointStore
	logger *zap.Logger

	// DeviationThresholdMeters is the allowed distance off the planned route.
	// Severity escalates to high at twice the threshold.
	DeviationThresholdMeters float64
	// StoppageThreshold is the stationary duration that raises an alert.
	// Severity escalates to high at twice the threshold.
	StoppageThreshold time.Duration
	// ExpectedPingInterval is the nominal gap between tracking pings.
	ExpectedPingInterval time.Duration
	// MissedPingIntervals is how many expected intervals may elapse without a
	// ping before tracking counts as lost. Critical at twice that.
	MissedPingIntervals float64
	// DelayThresholdPercent is the slippage tolerance shared with the
	// exception delay detector.
	DelayThresholdPercent float64

	now func() time.Time
}

// NewDetection creates the alert detection engine.
func NewDetection(alerts ports.AlertRepository, trips ports.TripStore, points ports.PointStore, logger *zap.Logger,
	deviationMeters float64, stoppage time.Duration, pingInterval time.Duration, missedIntervals float64, delayPercent float64) *Detection {
	return &Detection{
		alerts:                   alerts,
		trips:                    trips,
		points:                   points,
		logger:                   logger,
		DeviationThresholdMeters: deviationMeters,
		StoppageThreshold:        stoppage,
		ExpectedPingInterval:     pingInterval,
		MissedPingIntervals:      missedIntervals,
		DelayThresholdPercent:    delayPercent,
		now:                      time.Now,
	}
}

// Sweep runs the ping-driven detectors for one trip. Individual detector
// failures degrade to a skipped check so an evaluation error never blocks
// ping ingestion.
func (d *Detection) Sweep(ctx context.Context, tripID string) {
	trip, err := d.trips.GetByID(ctx, tripID)
	if err != nil {
		d.logger.Warn("alert sweep skipped, trip not loadable", zap.String("trip_id", tripID), zap.Error(err))
		return
	}
	if trip.Status.IsTerminal() {
		return
	}

	checks := []struct {
		name string
		run  func(context.Context, *tripdomain.Trip) (*domain.TripAlert, error)
	}{
		{"tracking_lost", d.checkTrackingLost},
		{"route_deviation", d.checkRouteDeviation},
		{"stoppage", d.checkStoppage},
	}
	for _, check := range checks {
		if _, err := check.run(ctx, trip); err != nil {
			d.logger.Warn("alert detector failed, skipping",
				zap.String("trip_id", tripID),
				zap.String("detector", check.name),
				zap.Error(err),
			)
		}
	}
}

// checkRouteDeviation measures the great-circle distance from the latest ping
// to the nearest vertex of the planned route.
func (d *Detection) checkRouteDeviation(ctx context.Context, trip *tripdomain.Trip) (*domain.TripAlert, error) {
	route := trip.Route()
	if len(route) == 0 {
		return nil, nil
	}
	latest, err := d.points.Latest(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	distance := geo.MinDistanceToPath(latest.Latitude, latest.Longitude, route)
	if distance < 0 || distance <= d.DeviationThresholdMeters {
		return nil, nil
	}

	severity := domain.SeverityMedium
	if distance > 2*d.DeviationThresholdMeters {
		severity = domain.SeverityHigh
	}

	return d.createDeduped(ctx, trip.ID, &domain.TripAlert{
		Type:           domain.AlertRouteDeviation,
		Severity:       severity,
		Message:        fmt.Sprintf("vehicle is %.0f m off the planned route", distance),
		ThresholdValue: d.DeviationThresholdMeters,
		ActualValue:    distance,
		Latitude:       &latest.Latitude,
		Longitude:      &latest.Longitude,
	})
}

// checkStoppage walks the most recent points backward while speed is zero to
// measure how long the vehicle has been stationary. An active stoppage alert
// triggered at or after the stopped-since time suppresses a new one; an older
// active alert belongs to a previous stoppage and does not.
func (d *Detection) checkStoppage(ctx context.Context, trip *tripdomain.Trip) (*domain.TripAlert, error) {
	recent, err := d.points.Recent(ctx, trip.ID, recentWindow)
	if err != nil {
		return nil, err
	}
	stoppedSince, stopped := stationarySince(recent)
	if !stopped {
		return nil, nil
	}

	duration := d.now().Sub(stoppedSince)
	if duration < d.StoppageThreshold {
		return nil, nil
	}

	existing, err := d.alerts.FindActiveSince(ctx, trip.ID, domain.AlertStoppage, stoppedSince)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	severity := domain.SeverityMedium
	if duration >= 2*d.StoppageThreshold {
		severity = domain.SeverityHigh
	}

	newest := recent[0]
	return d.create(ctx, trip.ID, &domain.TripAlert{
		Type:           domain.AlertStoppage,
		Severity:       severity,
		Message:        fmt.Sprintf("vehicle stationary for %.0f minutes", duration.Minutes()),
		ThresholdValue: d.StoppageThreshold.Minutes(),
		ActualValue:    duration.Minutes(),
		Latitude:       &newest.Latitude,
		Longitude:      &newest.Longitude,
		Metadata:       datatypes.JSONMap{"stopped_since": stoppedSince.Format(time.RFC3339)},
	})
}

// stationarySince returns the timestamp of the earliest point in the trailing
// zero-speed run. points are newest first; a missing speed reading ends the walk.
func stationarySince(points []trackingdomain.TrackingPoint) (time.Time, bool) {
	var since time.Time
	found := false
	for _, point := range points {
		if point.SpeedKph == nil || *point.SpeedKph != 0 {
			break
		}
		since = point.Timestamp
		found = true
	}
	return since, found
}

// checkTrackingLost raises an alert and marks the trip untrackable when pings
// stop arriving. When pings resume, the active alert is auto-resolved and
// trackability restored, unless consent has been revoked.
func (d *Detection) checkTrackingLost(ctx context.Context, trip *tripdomain.Trip) (*domain.TripAlert, error) {
	latest, err := d.points.Latest(ctx, trip.ID)
	if err != nil {
		return nil, err
	}

	var missedIntervals float64
	if latest == nil {
		missedIntervals = d.MissedPingIntervals + 1
	} else {
		missedIntervals = d.now().Sub(latest.Timestamp).Seconds() / d.ExpectedPingInterval.Seconds()
	}

	if missedIntervals <= d.MissedPingIntervals {
		return nil, d.resolveTrackingLost(ctx, trip)
	}

	severity := domain.SeverityHigh
	if missedIntervals > 2*d.MissedPingIntervals {
		severity = domain.SeverityCritical
	}

	message := "no tracking ping has ever been received"
	if latest != nil {
		message = fmt.Sprintf("no tracking ping for %.1f expected intervals", missedIntervals)
	}

	alert, err := d.createDeduped(ctx, trip.ID, &domain.TripAlert{
		Type:           domain.AlertTrackingLost,
		Severity:       severity,
		Message:        message,
		ThresholdValue: d.MissedPingIntervals,
		ActualValue:    missedIntervals,
	})
	if err != nil {
		return nil, err
	}
	if err := d.trips.SetTrackable(ctx, trip.ID, false); err != nil {
		return alert, err
	}
	return alert, nil
}

// resolveTrackingLost closes an active tracking-lost alert once pings resume
// and restores trackability, unless an active consent revocation holds it down.
func (d *Detection) resolveTrackingLost(ctx context.Context, trip *tripdomain.Trip) error {
	active, err := d.alerts.FindActive(ctx, trip.ID, domain.AlertTrackingLost)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}

	if err := d.autoResolve(ctx, active, "tracking pings resumed"); err != nil {
		return err
	}

	consent, err := d.alerts.FindActive(ctx, trip.ID, domain.AlertConsentRevoked)
	if err != nil {
		return err
	}
	if consent == nil && !trip.IsTrackable {
		return d.trips.SetTrackable(ctx, trip.ID, true)
	}
	return nil
}

// CheckDelay evaluates the trip against an externally computed current ETA.
// The baseline is the planned ETA, falling back to the planned end time.
// When the trip is back within tolerance, an active delay alert is
// auto-resolved with the reason recorded in metadata.
func (d *Detection) CheckDelay(ctx context.Context, tripID string, currentETA time.Time) (*domain.TripAlert, error) {
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

	assessment := domain.EvaluateDelay(*baseline, currentETA, d.now(), d.DelayThresholdPercent)
	if !assessment.Delayed {
		active, err := d.alerts.FindActive(ctx, tripID, domain.AlertDelayWarning)
		if err != nil {
			return nil, err
		}
		if active != nil {
			if err := d.autoResolve(ctx, active, "trip back within delay tolerance"); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	message := fmt.Sprintf("trip is running %.0f%% over the planned remaining time", assessment.DelayPercent)
	actual := assessment.DelayPercent
	threshold := d.DelayThresholdPercent
	if assessment.PastDue {
		message = fmt.Sprintf("trip is %.0f minutes past its planned ETA", assessment.DelayMinutes)
		actual = assessment.DelayMinutes
		threshold = 0
	}

	return d.createDeduped(ctx, tripID, &domain.TripAlert{
		Type:           domain.AlertDelayWarning,
		Severity:       domain.DelaySeverity(assessment),
		Message:        message,
		ThresholdValue: threshold,
		ActualValue:    actual,
		Metadata: datatypes.JSONMap{
			"past_due":    assessment.PastDue,
			"current_eta": currentETA.Format(time.RFC3339),
		},
	})
}

// ConsentRevoked raises the critical consent alert and stops tracking the
// trip. Triggered by the external consent webhook, never computed internally.
func (d *Detection) ConsentRevoked(ctx context.Context, tripID string) (*domain.TripAlert, error) {
	trip, err := d.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	alert, err := d.createDeduped(ctx, trip.ID, &domain.TripAlert{
		Type:     domain.AlertConsentRevoked,
		Severity: domain.SeverityCritical,
		Message:  "driver revoked tracking consent",
	})
	if err != nil {
		return nil, err
	}
	if err := d.trips.SetTrackable(ctx, tripID, false); err != nil {
		return alert, err
	}
	return alert, nil
}

// createDeduped creates the alert unless an active one of the same type
// already exists for the trip.
func (d *Detection) createDeduped(ctx context.Context, tripID string, alert *domain.TripAlert) (*domain.TripAlert, error) {
	existing, err := d.alerts.FindActive(ctx, tripID, alert.Type)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}
	return d.create(ctx, tripID, alert)
}

func (d *Detection) create(ctx context.Context, tripID string, alert *domain.TripAlert) (*domain.TripAlert, error) {
	alert.ID = uuid.NewString()
	alert.TripID = tripID
	alert.Status = domain.AlertActive
	alert.TriggeredAt = d.now()

	if err := d.alerts.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("creating %s alert: %w", alert.Type, err)
	}

	d.logger.Info("trip alert raised",
		zap.String("trip_id", tripID),
		zap.String("alert_type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
	)

	if err := recomputeActiveCount(ctx, d.alerts, d.trips, tripID); err != nil {
		d.logger.Warn("active alert count recompute failed", zap.String("trip_id", tripID), zap.Error(err))
	}
	return alert, nil
}

// autoResolve closes an alert on behalf of a detector, recording the reason.
func (d *Detection) autoResolve(ctx context.Context, alert *domain.TripAlert, reason string) error {
	now := d.now()
	alert.Status = domain.AlertResolved
	alert.ResolvedAt = &now
	if alert.Metadata == nil {
		alert.Metadata = datatypes.JSONMap{}
	}
	alert.Metadata["auto_resolved_reason"] = reason

	if err := d.alerts.Save(ctx, alert); err != nil {
		return fmt.Errorf("auto-resolving %s alert: %w", alert.Type, err)
	}

	d.logger.Info("trip alert auto-resolved",
		zap.String("trip_id", alert.TripID),
		zap.String("alert_type", string(alert.Type)),
		zap.String("reason", reason),
	)

	if err := recomputeActiveCount(ctx, d.alerts, d.trips, alert.TripID); err != nil {
		d.logger.Warn("active alert count recompute failed", zap.String("trip_id", alert.TripID), zap.Error(err))
	}
	return nil
}

// recomputeActiveCount re-derives the trip's active alert aggregate from the
// store rather than patching a running total.
func recomputeActiveCount(ctx context.Context, alerts ports.AlertRepository, trips ports.TripStore, tripID string) error {
	count, err := alerts.CountActive(ctx, tripID)
	if err != nil {
		return err
	}
	return trips.UpdateAlertAggregates(ctx, tripID, count)
}
