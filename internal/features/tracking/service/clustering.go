package service

import (
	"sort"
	"time"

	"logistics-console/internal/core/geo"
	"logistics-console/internal/features/tracking/domain"
)

// Cluster groups a sequence of tracking points into stationary clusters and
// moving points.
//
// The pass is single left-to-right over the points sorted by sequence number:
// a running cluster grows while each next point stays within proximityMeters
// of the running centroid (the arithmetic mean of member coordinates), and is
// closed otherwise. A closed group of two or more points becomes a cluster;
// a group of one is a moving point. Closed clusters are never revisited, so
// the result is deterministic for a given point set regardless of input order.
func Cluster(points []domain.TrackingPoint, proximityMeters float64, stoppageThreshold time.Duration) domain.ClusterResult {
	result := domain.ClusterResult{}
	if len(points) == 0 {
		return result
	}

	sorted := make([]domain.TrackingPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})

	current := []domain.TrackingPoint{sorted[0]}
	sumLat, sumLng := sorted[0].Latitude, sorted[0].Longitude

	flush := func() {
		if len(current) >= 2 {
			cluster := domain.TrackingCluster{
				Points:      current,
				CentroidLat: sumLat / float64(len(current)),
				CentroidLng: sumLng / float64(len(current)),
				StartTime:   current[0].Timestamp,
				EndTime:     current[len(current)-1].Timestamp,
			}
			cluster.IsStoppage = cluster.Duration() >= stoppageThreshold
			result.Clusters = append(result.Clusters, cluster)
		} else {
			result.MovingPoints = append(result.MovingPoints, current[0])
		}
	}

	for _, point := range sorted[1:] {
		centroidLat := sumLat / float64(len(current))
		centroidLng := sumLng / float64(len(current))

		if geo.Distance(centroidLat, centroidLng, point.Latitude, point.Longitude) <= proximityMeters {
			current = append(current, point)
			sumLat += point.Latitude
			sumLng += point.Longitude
			continue
		}

		flush()
		current = []domain.TrackingPoint{point}
		sumLat, sumLng = point.Latitude, point.Longitude
	}
	flush()

	return result
}
