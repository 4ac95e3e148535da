package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logistics-console/internal/features/tracking/domain"
)

// At the equator one degree of latitude is roughly 111 km, so 0.0001 degrees
// is about 11 meters. Points built with offsetPoint stay well inside a 100m
// proximity radius for small step counts.
func offsetPoint(seq int64, latSteps int, at time.Time) domain.TrackingPoint {
	return domain.TrackingPoint{
		TripID:         "trip-1",
		SequenceNumber: seq,
		Latitude:       12.9716 + float64(latSteps)*0.0001,
		Longitude:      77.5946,
		Timestamp:      at,
	}
}

func TestCluster_Empty(t *testing.T) {
	result := Cluster(nil, 100, 30*time.Minute)

	assert.Empty(t, result.Clusters)
	assert.Empty(t, result.MovingPoints)
}

func TestCluster_StationaryRunBecomesStoppage(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	points := make([]domain.TrackingPoint, 0, 10)
	for i := 0; i < 10; i++ {
		// jitter within ~50m of the first point, spanning 45 minutes
		points = append(points, offsetPoint(int64(i+1), i%4, start.Add(time.Duration(i)*5*time.Minute)))
	}

	result := Cluster(points, 100, 30*time.Minute)

	require.Len(t, result.Clusters, 1)
	assert.Empty(t, result.MovingPoints)

	cluster := result.Clusters[0]
	assert.Len(t, cluster.Points, 10)
	assert.True(t, cluster.IsStoppage)
	assert.Equal(t, 45*time.Minute, cluster.Duration())
	require.Len(t, result.Stoppages(), 1)
}

func TestCluster_ShortDwellIsNotStoppage(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	points := []domain.TrackingPoint{
		offsetPoint(1, 0, start),
		offsetPoint(2, 1, start.Add(5*time.Minute)),
		offsetPoint(3, 0, start.Add(10*time.Minute)),
	}

	result := Cluster(points, 100, 30*time.Minute)

	require.Len(t, result.Clusters, 1)
	assert.False(t, result.Clusters[0].IsStoppage)
	assert.Empty(t, result.Stoppages())
}

func TestCluster_IsolatedPointsStayMoving(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	points := []domain.TrackingPoint{
		offsetPoint(1, 0, start),
		// ~1.1km away, far beyond the proximity radius
		offsetPoint(2, 100, start.Add(5*time.Minute)),
	}

	result := Cluster(points, 100, 30*time.Minute)

	assert.Empty(t, result.Clusters)
	assert.Len(t, result.MovingPoints, 2)
}

func TestCluster_OrderIndependent(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	points := []domain.TrackingPoint{
		offsetPoint(1, 0, start),
		offsetPoint(2, 1, start.Add(5*time.Minute)),
		offsetPoint(3, 200, start.Add(10*time.Minute)),
		offsetPoint(4, 201, start.Add(40*time.Minute)),
		offsetPoint(5, 202, start.Add(50*time.Minute)),
	}
	shuffled := []domain.TrackingPoint{points[3], points[0], points[4], points[1], points[2]}

	inOrder := Cluster(points, 100, 30*time.Minute)
	reordered := Cluster(shuffled, 100, 30*time.Minute)

	assert.Equal(t, inOrder, reordered)
}

func TestCluster_EveryInputPointAppearsExactlyOnce(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	points := []domain.TrackingPoint{
		offsetPoint(1, 0, start),
		offsetPoint(2, 1, start.Add(5*time.Minute)),
		offsetPoint(3, 100, start.Add(10*time.Minute)),
		offsetPoint(4, 200, start.Add(15*time.Minute)),
		offsetPoint(5, 201, start.Add(20*time.Minute)),
		offsetPoint(6, 202, start.Add(55*time.Minute)),
	}

	result := Cluster(points, 100, 30*time.Minute)

	seen := make(map[int64]int)
	for _, cluster := range result.Clusters {
		for _, p := range cluster.Points {
			seen[p.SequenceNumber]++
		}
	}
	for _, p := range result.MovingPoints {
		seen[p.SequenceNumber]++
	}

	require.Len(t, seen, len(points))
	for _, p := range points {
		assert.Equal(t, 1, seen[p.SequenceNumber], "sequence %d", p.SequenceNumber)
	}
}
