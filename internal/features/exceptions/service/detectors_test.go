package service

import (
	"context"
	"testing"
	"time"

	"logistics-console/internal/features/exceptions/domain"
	tripdomain "logistics-console/internal/features/trips/domain"
	tripports "logistics-console/internal/features/trips/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCapacityChecker returns a canned capacity result.
type mockCapacityChecker struct {
	result *tripports.CapacityResult
	err    error
}

func (m *mockCapacityChecker) ValidateCapacity(ctx context.Context, tripID string, w, v float64) (*tripports.CapacityResult, error) {
	return m.result, m.err
}

func newDetectors(repo *mockExceptionRepo, store *mockShipmentStore, trips *mockTripStore, capacity *mockCapacityChecker) *Detectors {
	l := newLifecycle(repo, store)
	d := NewDetectors(l, repo, store, trips, capacity, 60*time.Minute, 15)
	d.now = fixedNow
	return d
}

// TestDetectDuplicateMapping verifies the multi-trip mapping detector and its
// dedup on an already-open exception.
func TestDetectDuplicateMapping(t *testing.T) {
	repo := newMockExceptionRepo()
	store := newMockShipmentStore("s1")
	d := newDetectors(repo, store, &mockTripStore{}, &mockCapacityChecker{})

	store.activeTripMap = 1
	e, err := d.DetectDuplicateMapping(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, e)

	store.activeTripMap = 2
	e, err = d.DetectDuplicateMapping(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, domain.ExceptionDuplicateTripMapping, e.Type)
	assert.Equal(t, domain.SeverityHigh, e.Severity)

	// Second detection pass dedupes on the open exception.
	dup, err := d.DetectDuplicateMapping(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, dup)
}

// TestDetectVehicleNotArrived verifies the grace window and severity escalation.
func TestDetectVehicleNotArrived(t *testing.T) {
	tests := []struct {
		name          string
		minutesLate   int
		wantException bool
		wantSeverity  domain.Severity
	}{
		{name: "WithinGrace", minutesLate: 45, wantException: false},
		{name: "PastGrace", minutesLate: 90, wantException: true, wantSeverity: domain.SeverityMedium},
		{name: "PastDoubleGrace", minutesLate: 150, wantException: true, wantSeverity: domain.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planned := fixedNow().Add(-time.Duration(tt.minutesLate) * time.Minute)
			trips := &mockTripStore{trips: map[string]*tripdomain.Trip{
				"t1": {ID: "t1", PlannedPickupAt: &planned},
			}}
			d := newDetectors(newMockExceptionRepo(), newMockShipmentStore("s1"), trips, &mockCapacityChecker{})

			e, err := d.DetectVehicleNotArrived(context.Background(), "s1", "t1")
			require.NoError(t, err)

			if !tt.wantException {
				assert.Nil(t, e)
				return
			}
			require.NotNil(t, e)
			assert.Equal(t, domain.ExceptionVehicleNotArrived, e.Type)
			assert.Equal(t, tt.wantSeverity, e.Severity)
		})
	}
}

// TestDetectVehicleNotArrived_AlreadyArrived verifies no exception once the
// vehicle_arrived timestamp is stamped.
func TestDetectVehicleNotArrived_AlreadyArrived(t *testing.T) {
	store := newMockShipmentStore("s1")
	arrived := fixedNow().Add(-10 * time.Minute)
	store.shipments["s1"].VehicleArrivedAt = &arrived

	planned := fixedNow().Add(-3 * time.Hour)
	trips := &mockTripStore{trips: map[string]*tripdomain.Trip{"t1": {ID: "t1", PlannedPickupAt: &planned}}}
	d := newDetectors(newMockExceptionRepo(), store, trips, &mockCapacityChecker{})

	e, err := d.DetectVehicleNotArrived(context.Background(), "s1", "t1")
	require.NoError(t, err)
	assert.Nil(t, e)
}

// TestDetectCapacityExceeded verifies delegation to the capacity validator and
// graceful degradation when the evaluation fails.
func TestDetectCapacityExceeded(t *testing.T) {
	t.Run("Exceeded", func(t *testing.T) {
		capacity := &mockCapacityChecker{result: &tripports.CapacityResult{
			Valid:                    false,
			WeightUtilizationPercent: 110,
		}}
		d := newDetectors(newMockExceptionRepo(), newMockShipmentStore("s1"), &mockTripStore{}, capacity)

		e, err := d.DetectCapacityExceeded(context.Background(), "s1", "t1")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, domain.ExceptionCapacityExceeded, e.Type)
	})

	t.Run("WithinCapacity", func(t *testing.T) {
		capacity := &mockCapacityChecker{result: &tripports.CapacityResult{Valid: true}}
		d := newDetectors(newMockExceptionRepo(), newMockShipmentStore("s1"), &mockTripStore{}, capacity)

		e, err := d.DetectCapacityExceeded(context.Background(), "s1", "t1")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("EvaluationErrorDegrades", func(t *testing.T) {
		capacity := &mockCapacityChecker{err: assert.AnError}
		d := newDetectors(newMockExceptionRepo(), newMockShipmentStore("s1"), &mockTripStore{}, capacity)

		e, err := d.DetectCapacityExceeded(context.Background(), "s1", "t1")
		require.NoError(t, err)
		assert.Nil(t, e)
	})
}

// TestDetectDelay verifies the shared delay calculation drives the exception.
func TestDetectDelay(t *testing.T) {
	planned := fixedNow().Add(60 * time.Minute)
	trips := &mockTripStore{trips: map[string]*tripdomain.Trip{
		"t1": {ID: "t1", PlannedETA: &planned},
	}}
	d := newDetectors(newMockExceptionRepo(), newMockShipmentStore("s1"), trips, &mockCapacityChecker{})

	// 10% over: under the 15% threshold.
	e, err := d.DetectDelay(context.Background(), "s1", "t1", fixedNow().Add(66*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, e)

	// 50% over: delayed, severity escalates to critical.
	e, err = d.DetectDelay(context.Background(), "s1", "t1", fixedNow().Add(90*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, domain.ExceptionDelay, e.Type)
	assert.Equal(t, domain.SeverityCritical, e.Severity)
	assert.Equal(t, false, e.Metadata["past_due"])
}
