package domain

import "time"

// TrackingPoint is one raw location ping from a GPS or SIM provider.
// Points are immutable once recorded.
type TrackingPoint struct {
	TripID string `json:"trip_id"`
	// SequenceNumber is strictly increasing per trip.
	SequenceNumber int64     `json:"sequence_number"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timestamp      time.Time `json:"timestamp"`
	// SpeedKph is the reported speed, when the provider sends one.
	SpeedKph *float64 `json:"speed_kph,omitempty"`
	// Address is the reverse-geocoded address, resolved by the ingestion collaborator.
	Address string `json:"address,omitempty"`
}

// TrackingCluster is a derived grouping of consecutive points within a
// proximity threshold. Clusters are a view over points, computed fresh on
// each analysis pass and never persisted.
type TrackingCluster struct {
	Points      []TrackingPoint `json:"points"`
	CentroidLat float64         `json:"centroid_lat"`
	CentroidLng float64         `json:"centroid_lng"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time"`
	// IsStoppage is true when the cluster duration meets the stoppage threshold.
	IsStoppage bool `json:"is_stoppage"`
}

// Duration returns the time span covered by the cluster.
func (c *TrackingCluster) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}

// ClusterResult is the outcome of one clustering pass: stationary clusters
// plus the points that were moving between them.
type ClusterResult struct {
	Clusters     []TrackingCluster `json:"clusters"`
	MovingPoints []TrackingPoint   `json:"moving_points"`
}

// Stoppages returns only the clusters flagged as stoppages.
func (r *ClusterResult) Stoppages() []TrackingCluster {
	var out []TrackingCluster
	for _, c := range r.Clusters {
		if c.IsStoppage {
			out = append(out, c)
		}
	}
	return out
}
