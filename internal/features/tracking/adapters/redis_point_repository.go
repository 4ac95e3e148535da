package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"logistics-console/internal/features/tracking/domain"
)

// RedisPointRepository keeps each trip's trail in a sorted set scored by
// sequence number, so range reads come back in ping order without a sort.
type RedisPointRepository struct {
	client *redis.Client
}

func NewRedisPointRepository(client *redis.Client) *RedisPointRepository {
	return &RedisPointRepository{client: client}
}

func trailKey(tripID string) string {
	return fmt.Sprintf("trip:%s:points", tripID)
}

func (r *RedisPointRepository) Append(ctx context.Context, tripID string, points ...domain.TrackingPoint) error {
	if len(points) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(points))
	for _, point := range points {
		payload, err := json.Marshal(point)
		if err != nil {
			return fmt.Errorf("encoding tracking point %d: %w", point.SequenceNumber, err)
		}
		members = append(members, redis.Z{
			Score:  float64(point.SequenceNumber),
			Member: payload,
		})
	}

	// Two pings with the same sequence number would collide on score alone,
	// so stale members at the same score are cleared before the write.
	pipe := r.client.TxPipeline()
	for _, m := range members {
		score := fmt.Sprintf("%d", int64(m.Score))
		pipe.ZRemRangeByScore(ctx, trailKey(tripID), score, score)
	}
	pipe.ZAdd(ctx, trailKey(tripID), members...)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisPointRepository) Range(ctx context.Context, tripID string) ([]domain.TrackingPoint, error) {
	raw, err := r.client.ZRange(ctx, trailKey(tripID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodePoints(raw)
}

func (r *RedisPointRepository) Latest(ctx context.Context, tripID string) (*domain.TrackingPoint, error) {
	raw, err := r.client.ZRevRange(ctx, trailKey(tripID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	points, err := decodePoints(raw)
	if err != nil {
		return nil, err
	}
	return &points[0], nil
}

func (r *RedisPointRepository) Recent(ctx context.Context, tripID string, n int) ([]domain.TrackingPoint, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.client.ZRevRange(ctx, trailKey(tripID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	return decodePoints(raw)
}

func decodePoints(raw []string) ([]domain.TrackingPoint, error) {
	points := make([]domain.TrackingPoint, 0, len(raw))
	for _, item := range raw {
		var point domain.TrackingPoint
		if err := json.Unmarshal([]byte(item), &point); err != nil {
			return nil, fmt.Errorf("decoding tracking point: %w", err)
		}
		points = append(points, point)
	}
	return points, nil
}
