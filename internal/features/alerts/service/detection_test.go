package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/features/alerts/domain"
	trackingdomain "logistics-console/internal/features/tracking/domain"
	tripdomain "logistics-console/internal/features/trips/domain"
)

// mockAlertRepo is an in-memory AlertRepository for testing.
type mockAlertRepo struct {
	alerts map[string]*domain.TripAlert
}

func newMockAlertRepo() *mockAlertRepo {
	return &mockAlertRepo{alerts: make(map[string]*domain.TripAlert)}
}

func (m *mockAlertRepo) GetByID(ctx context.Context, id string) (*domain.TripAlert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, apperr.NotFound("alert", id)
	}
	copied := *a
	return &copied, nil
}

func (m *mockAlertRepo) Create(ctx context.Context, alert *domain.TripAlert) error {
	copied := *alert
	m.alerts[alert.ID] = &copied
	return nil
}

func (m *mockAlertRepo) Save(ctx context.Context, alert *domain.TripAlert) error {
	copied := *alert
	m.alerts[alert.ID] = &copied
	return nil
}

func (m *mockAlertRepo) ListByTrip(ctx context.Context, tripID string) ([]domain.TripAlert, error) {
	var out []domain.TripAlert
	for _, a := range m.alerts {
		if a.TripID == tripID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAlertRepo) FindActive(ctx context.Context, tripID string, alertType domain.AlertType) (*domain.TripAlert, error) {
	for _, a := range m.alerts {
		if a.TripID == tripID && a.Type == alertType && a.Status == domain.AlertActive {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockAlertRepo) FindActiveSince(ctx context.Context, tripID string, alertType domain.AlertType, since time.Time) (*domain.TripAlert, error) {
	for _, a := range m.alerts {
		if a.TripID == tripID && a.Type == alertType && a.Status == domain.AlertActive && !a.TriggeredAt.Before(since) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockAlertRepo) CountActive(ctx context.Context, tripID string) (int, error) {
	count := 0
	for _, a := range m.alerts {
		if a.TripID == tripID && a.Status.CountsAsActive() {
			count++
		}
	}
	return count, nil
}

func (m *mockAlertRepo) byType(tripID string, alertType domain.AlertType) []*domain.TripAlert {
	var out []*domain.TripAlert
	for _, a := range m.alerts {
		if a.TripID == tripID && a.Type == alertType {
			out = append(out, a)
		}
	}
	return out
}

// mockTripStore records aggregate and trackability updates.
type mockTripStore struct {
	trips         map[string]*tripdomain.Trip
	lastCount     int
	trackableSets []bool
}

func newMockTripStore(trip *tripdomain.Trip) *mockTripStore {
	return &mockTripStore{trips: map[string]*tripdomain.Trip{trip.ID: trip}}
}

func (m *mockTripStore) GetByID(ctx context.Context, id string) (*tripdomain.Trip, error) {
	tr, ok := m.trips[id]
	if !ok {
		return nil, apperr.NotFound("trip", id)
	}
	return tr, nil
}

func (m *mockTripStore) UpdateAlertAggregates(ctx context.Context, tripID string, activeCount int) error {
	m.lastCount = activeCount
	if tr, ok := m.trips[tripID]; ok {
		tr.ActiveAlertCount = activeCount
	}
	return nil
}

func (m *mockTripStore) SetTrackable(ctx context.Context, tripID string, trackable bool) error {
	m.trackableSets = append(m.trackableSets, trackable)
	if tr, ok := m.trips[tripID]; ok {
		tr.IsTrackable = trackable
	}
	return nil
}

// mockPointStore serves a fixed trail, newest first for Recent.
type mockPointStore struct {
	points []trackingdomain.TrackingPoint // ascending sequence order
}

func (m *mockPointStore) Latest(ctx context.Context, tripID string) (*trackingdomain.TrackingPoint, error) {
	if len(m.points) == 0 {
		return nil, nil
	}
	latest := m.points[len(m.points)-1]
	return &latest, nil
}

func (m *mockPointStore) Recent(ctx context.Context, tripID string, n int) ([]trackingdomain.TrackingPoint, error) {
	out := make([]trackingdomain.TrackingPoint, 0, n)
	for i := len(m.points) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.points[i])
	}
	return out, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func speed(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

// baseTrip returns an in-progress trackable trip with a two-vertex planned
// route near Bangalore.
func baseTrip() *tripdomain.Trip {
	return &tripdomain.Trip{
		ID:          "t1",
		Status:      tripdomain.TripStatusInProgress,
		IsTrackable: true,
		PlannedRoute: datatypes.JSON([]byte(
			`[{"lat":12.9716,"lng":77.5946},{"lat":12.9800,"lng":77.6000}]`)),
	}
}

func newDetection(repo *mockAlertRepo, trips *mockTripStore, points *mockPointStore) *Detection {
	d := NewDetection(repo, trips, points, zap.NewNop(),
		500, 30*time.Minute, 5*time.Minute, 2, 15)
	d.now = fixedNow
	return d
}

func TestSweep_RouteDeviation(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	// ~666m north of the first route vertex; recent enough that tracking is live
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9776, Longitude: 77.5946, Timestamp: fixedNow().Add(-time.Minute), SpeedKph: speed(40)},
	}}
	d := newDetection(repo, trips, points)

	d.Sweep(context.Background(), "t1")

	created := repo.byType("t1", domain.AlertRouteDeviation)
	require.Len(t, created, 1)
	assert.Equal(t, domain.SeverityMedium, created[0].Severity)
	assert.Equal(t, 500.0, created[0].ThresholdValue)
	assert.Greater(t, created[0].ActualValue, 500.0)
	require.NotNil(t, created[0].Latitude)
	assert.Equal(t, 1, trips.lastCount)
}

func TestSweep_RouteDeviation_HighBeyondDoubleThreshold(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	// ~1.1km off route
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9816, Longitude: 77.5846, Timestamp: fixedNow().Add(-time.Minute), SpeedKph: speed(40)},
	}}
	d := newDetection(repo, trips, points)

	d.Sweep(context.Background(), "t1")

	created := repo.byType("t1", domain.AlertRouteDeviation)
	require.Len(t, created, 1)
	assert.Equal(t, domain.SeverityHigh, created[0].Severity)
}

func TestSweep_RouteDeviation_DedupedWhileActive(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9776, Longitude: 77.5946, Timestamp: fixedNow().Add(-time.Minute), SpeedKph: speed(40)},
	}}
	d := newDetection(repo, trips, points)

	d.Sweep(context.Background(), "t1")
	d.Sweep(context.Background(), "t1")

	assert.Len(t, repo.byType("t1", domain.AlertRouteDeviation), 1)
}

func TestSweep_Stoppage(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	// moving, then stationary for the last 40 minutes
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9716, Longitude: 77.5946, Timestamp: fixedNow().Add(-50 * time.Minute), SpeedKph: speed(35)},
		{SequenceNumber: 2, Latitude: 12.9717, Longitude: 77.5946, Timestamp: fixedNow().Add(-40 * time.Minute), SpeedKph: speed(0)},
		{SequenceNumber: 3, Latitude: 12.9717, Longitude: 77.5946, Timestamp: fixedNow().Add(-20 * time.Minute), SpeedKph: speed(0)},
		{SequenceNumber: 4, Latitude: 12.9717, Longitude: 77.5946, Timestamp: fixedNow().Add(-1 * time.Minute), SpeedKph: speed(0)},
	}}
	d := newDetection(repo, trips, points)

	d.Sweep(context.Background(), "t1")

	created := repo.byType("t1", domain.AlertStoppage)
	require.Len(t, created, 1)
	assert.Equal(t, domain.SeverityMedium, created[0].Severity)
	assert.InDelta(t, 40, created[0].ActualValue, 0.01)
	assert.Equal(t, "2025-03-10T11:20:00Z", created[0].Metadata["stopped_since"])

	// same stoppage on the next sweep: suppressed by the time-window check
	d.Sweep(context.Background(), "t1")
	assert.Len(t, repo.byType("t1", domain.AlertStoppage), 1)
}

func TestSweep_Stoppage_NewStoppageSupersedesOldAlert(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 5, Latitude: 12.9730, Longitude: 77.5950, Timestamp: fixedNow().Add(-35 * time.Minute), SpeedKph: speed(0)},
		{SequenceNumber: 6, Latitude: 12.9730, Longitude: 77.5950, Timestamp: fixedNow().Add(-1 * time.Minute), SpeedKph: speed(0)},
	}}
	d := newDetection(repo, trips, points)

	// an active alert from an earlier stoppage at a previous location
	stale := &domain.TripAlert{
		ID: "old", TripID: "t1", Type: domain.AlertStoppage,
		Status: domain.AlertActive, TriggeredAt: fixedNow().Add(-3 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), stale))

	d.Sweep(context.Background(), "t1")

	assert.Len(t, repo.byType("t1", domain.AlertStoppage), 2)
}

func TestSweep_Stoppage_HighBeyondDoubleThreshold(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9717, Longitude: 77.5946, Timestamp: fixedNow().Add(-70 * time.Minute), SpeedKph: speed(0)},
		{SequenceNumber: 2, Latitude: 12.9717, Longitude: 77.5946, Timestamp: fixedNow().Add(-1 * time.Minute), SpeedKph: speed(0)},
	}}
	d := newDetection(repo, trips, points)

	d.Sweep(context.Background(), "t1")

	created := repo.byType("t1", domain.AlertStoppage)
	require.Len(t, created, 1)
	assert.Equal(t, domain.SeverityHigh, created[0].Severity)
}

func TestSweep_TrackingLost_NoPingsEver(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	d := newDetection(repo, trips, &mockPointStore{})

	d.Sweep(context.Background(), "t1")

	created := repo.byType("t1", domain.AlertTrackingLost)
	require.Len(t, created, 1)
	assert.False(t, trips.trips["t1"].IsTrackable)
}

func TestSweep_TrackingLost_MissedIntervals(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	// last ping 15 minutes ago with a 5-minute expected interval: 3 missed
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9716, Longitude: 77.5946, Timestamp: fixedNow().Add(-15 * time.Minute), SpeedKph: speed(30)},
	}}
	d := newDetection(repo, trips, points)

	d.Sweep(context.Background(), "t1")

	created := repo.byType("t1", domain.AlertTrackingLost)
	require.Len(t, created, 1)
	assert.Equal(t, domain.SeverityHigh, created[0].Severity)
	assert.InDelta(t, 3, created[0].ActualValue, 0.01)
	assert.False(t, trips.trips["t1"].IsTrackable)
}

func TestSweep_TrackingLost_CriticalBeyondFourIntervals(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9716, Longitude: 77.5946, Timestamp: fixedNow().Add(-30 * time.Minute), SpeedKph: speed(30)},
	}}
	d := newDetection(repo, trips, points)

	d.Sweep(context.Background(), "t1")

	created := repo.byType("t1", domain.AlertTrackingLost)
	require.Len(t, created, 1)
	assert.Equal(t, domain.SeverityCritical, created[0].Severity)
}

func TestSweep_TrackingLost_AutoResolvesWhenPingsResume(t *testing.T) {
	trip := baseTrip()
	trip.IsTrackable = false
	repo := newMockAlertRepo()
	trips := newMockTripStore(trip)
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9716, Longitude: 77.5946, Timestamp: fixedNow().Add(-2 * time.Minute), SpeedKph: speed(30)},
	}}
	d := newDetection(repo, trips, points)

	lost := &domain.TripAlert{
		ID: "a1", TripID: "t1", Type: domain.AlertTrackingLost,
		Status: domain.AlertActive, TriggeredAt: fixedNow().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), lost))

	d.Sweep(context.Background(), "t1")

	resolved, err := repo.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertResolved, resolved.Status)
	assert.Equal(t, "tracking pings resumed", resolved.Metadata["auto_resolved_reason"])
	assert.True(t, trips.trips["t1"].IsTrackable)
}

func TestSweep_TrackingLost_ConsentHoldsTrackabilityDown(t *testing.T) {
	trip := baseTrip()
	trip.IsTrackable = false
	repo := newMockAlertRepo()
	trips := newMockTripStore(trip)
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9716, Longitude: 77.5946, Timestamp: fixedNow().Add(-2 * time.Minute), SpeedKph: speed(30)},
	}}
	d := newDetection(repo, trips, points)

	require.NoError(t, repo.Create(context.Background(), &domain.TripAlert{
		ID: "a1", TripID: "t1", Type: domain.AlertTrackingLost,
		Status: domain.AlertActive, TriggeredAt: fixedNow().Add(-time.Hour),
	}))
	require.NoError(t, repo.Create(context.Background(), &domain.TripAlert{
		ID: "a2", TripID: "t1", Type: domain.AlertConsentRevoked,
		Status: domain.AlertActive, TriggeredAt: fixedNow().Add(-time.Hour),
	}))

	d.Sweep(context.Background(), "t1")

	assert.False(t, trips.trips["t1"].IsTrackable)
}

func TestCheckDelay_PastDue(t *testing.T) {
	trip := baseTrip()
	trip.PlannedEndTime = timePtr(fixedNow().Add(-2 * time.Hour))
	repo := newMockAlertRepo()
	trips := newMockTripStore(trip)
	d := newDetection(repo, trips, &mockPointStore{})

	alert, err := d.CheckDelay(context.Background(), "t1", fixedNow().Add(30*time.Minute))

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertDelayWarning, alert.Type)
	assert.Equal(t, domain.SeverityHigh, alert.Severity)
	assert.InDelta(t, 30, alert.ActualValue, 0.01)
	assert.Equal(t, true, alert.Metadata["past_due"])
}

func TestCheckDelay_PercentRegime(t *testing.T) {
	trip := baseTrip()
	trip.PlannedETA = timePtr(fixedNow().Add(60 * time.Minute))
	repo := newMockAlertRepo()
	trips := newMockTripStore(trip)
	d := newDetection(repo, trips, &mockPointStore{})

	// 90 remaining vs 60 planned: 50% over, critical tier
	alert, err := d.CheckDelay(context.Background(), "t1", fixedNow().Add(90*time.Minute))

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, domain.SeverityCritical, alert.Severity)
	assert.InDelta(t, 50, alert.ActualValue, 0.01)
}

func TestCheckDelay_WithinToleranceAutoResolves(t *testing.T) {
	trip := baseTrip()
	trip.PlannedETA = timePtr(fixedNow().Add(60 * time.Minute))
	repo := newMockAlertRepo()
	trips := newMockTripStore(trip)
	d := newDetection(repo, trips, &mockPointStore{})

	_, err := d.CheckDelay(context.Background(), "t1", fixedNow().Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, repo.byType("t1", domain.AlertDelayWarning), 1)

	alert, err := d.CheckDelay(context.Background(), "t1", fixedNow().Add(62*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, alert)

	remaining := repo.byType("t1", domain.AlertDelayWarning)
	require.Len(t, remaining, 1)
	assert.Equal(t, domain.AlertResolved, remaining[0].Status)
	assert.Equal(t, "trip back within delay tolerance", remaining[0].Metadata["auto_resolved_reason"])
	assert.Equal(t, 0, trips.lastCount)
}

func TestConsentRevoked(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	d := newDetection(repo, trips, &mockPointStore{})

	alert, err := d.ConsentRevoked(context.Background(), "t1")

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, domain.SeverityCritical, alert.Severity)
	assert.False(t, trips.trips["t1"].IsTrackable)

	// webhook retries dedupe against the active alert
	again, err := d.ConsentRevoked(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, repo.byType("t1", domain.AlertConsentRevoked), 1)
}

// The dedup check is check-then-act without a store-level uniqueness
// constraint. Two interleaved sweeps can both pass the FindActive check and
// create duplicate alerts; the guarantee is best-effort and the next settled
// sweep dedupes by seeing the earlier active alert. This test documents the
// sequential behavior that the dedup relies on.
func TestSweep_DedupIsBestEffortSequential(t *testing.T) {
	repo := newMockAlertRepo()
	trips := newMockTripStore(baseTrip())
	points := &mockPointStore{points: []trackingdomain.TrackingPoint{
		{SequenceNumber: 1, Latitude: 12.9776, Longitude: 77.5946, Timestamp: fixedNow().Add(-time.Minute), SpeedKph: speed(40)},
	}}
	d := newDetection(repo, trips, points)

	for i := 0; i < 5; i++ {
		d.Sweep(context.Background(), "t1")
	}

	created := repo.byType("t1", domain.AlertRouteDeviation)
	assert.Len(t, created, 1, fmt.Sprintf("expected sequential sweeps to settle on one active alert, got %d", len(created)))
}

func TestSweep_TerminalTripSkipped(t *testing.T) {
	trip := baseTrip()
	trip.Status = tripdomain.TripStatusCompleted
	repo := newMockAlertRepo()
	trips := newMockTripStore(trip)
	d := newDetection(repo, trips, &mockPointStore{})

	d.Sweep(context.Background(), "t1")

	assert.Empty(t, repo.alerts)
}
