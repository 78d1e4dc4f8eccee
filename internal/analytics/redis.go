package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/tagmanager/internal/telemetry"
)

const (
	countsKeyPrefix = "analytics:"
	lastSeenPrefix  = "analytics:last:"
)

// RedisRecorder keeps per-container hit counters: HINCRBY
// analytics:{containerId} {tagId}:{event}, plus the last hit time per tag.
type RedisRecorder struct {
	client *redis.Client
}

// NewRedisRecorder connects and pings the server.
func NewRedisRecorder(addr string) (*RedisRecorder, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisRecorder{client: client}, nil
}

func (*RedisRecorder) Name() string { return "redis" }

func (r *RedisRecorder) Record(ctx context.Context, h telemetry.Hit) error {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, countsKey(h.ContainerID), counterField(h), 1)
	pipe.HSet(ctx, lastSeenPrefix+h.ContainerID, h.TagID, h.Timestamp.UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record hit: %w", err)
	}
	return nil
}

func (r *RedisRecorder) Close() error { return r.client.Close() }

func countsKey(containerID string) string { return countsKeyPrefix + containerID }

func counterField(h telemetry.Hit) string { return h.TagID + ":" + h.Event }
