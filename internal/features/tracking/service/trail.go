package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/features/tracking/domain"
	"logistics-console/internal/features/tracking/ports"
)

// Trail ingests tracking pings and produces trail analyses on demand.
// Clusters are always computed fresh from the stored points, never persisted.
type Trail struct {
	points            ports.PointRepository
	logger            *zap.Logger
	proximityMeters   float64
	stoppageThreshold time.Duration
}

func NewTrail(points ports.PointRepository, logger *zap.Logger, proximityMeters float64, stoppageThreshold time.Duration) *Trail {
	return &Trail{
		points:            points,
		logger:            logger,
		proximityMeters:   proximityMeters,
		stoppageThreshold: stoppageThreshold,
	}
}

// IngestBatch validates and stores a batch of pings, returning the number
// accepted. Points with missing trip association take the batch trip ID.
func (t *Trail) IngestBatch(ctx context.Context, tripID string, points []domain.TrackingPoint) (int, error) {
	if tripID == "" {
		return 0, apperr.Validation("trip id is required")
	}
	if len(points) == 0 {
		return 0, nil
	}

	accepted := make([]domain.TrackingPoint, 0, len(points))
	for _, point := range points {
		if point.Latitude < -90 || point.Latitude > 90 || point.Longitude < -180 || point.Longitude > 180 {
			return 0, apperr.Validation("tracking point outside coordinate bounds").
				With("sequence_number", strconv.FormatInt(point.SequenceNumber, 10))
		}
		point.TripID = tripID
		accepted = append(accepted, point)
	}

	if err := t.points.Append(ctx, tripID, accepted...); err != nil {
		return 0, apperr.Persistence(err, "storing tracking points").With("trip_id", tripID)
	}

	t.logger.Debug("tracking points ingested",
		zap.String("trip_id", tripID),
		zap.Int("count", len(accepted)))
	return len(accepted), nil
}

// Analyze loads the full trail for a trip and clusters it.
func (t *Trail) Analyze(ctx context.Context, tripID string) (domain.ClusterResult, error) {
	points, err := t.points.Range(ctx, tripID)
	if err != nil {
		return domain.ClusterResult{}, apperr.Persistence(err, "loading tracking points").With("trip_id", tripID)
	}
	return Cluster(points, t.proximityMeters, t.stoppageThreshold), nil
}
