package ports

import (
	"context"

	"logistics-console/internal/features/tracking/domain"
)

// PointRepository stores raw tracking points for a trip.
type PointRepository interface {
	// Append stores points for a trip, keyed by sequence number. Re-appending
	// an existing sequence number overwrites the stored point.
	Append(ctx context.Context, tripID string, points ...domain.TrackingPoint) error
	// Range returns all points for a trip in ascending sequence order.
	Range(ctx context.Context, tripID string) ([]domain.TrackingPoint, error)
	// Latest returns the highest-sequence point, or nil when the trip has none.
	Latest(ctx context.Context, tripID string) (*domain.TrackingPoint, error)
	// Recent returns up to n points in descending sequence order.
	Recent(ctx context.Context, tripID string, n int) ([]domain.TrackingPoint, error)
}

// TrackingService is the primary port for ping ingestion and trail analysis.
type TrackingService interface {
	IngestBatch(ctx context.Context, tripID string, points []domain.TrackingPoint) (int, error)
	Analyze(ctx context.Context, tripID string) (domain.ClusterResult, error)
}
