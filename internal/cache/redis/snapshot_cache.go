package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache as JSON strings with a TTL.
// It holds the polled fixtures list and bet summary.
type SnapshotCache struct {
	rdb *redis.Client
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func snapshotKey(key string) string {
	return keyPrefix + "snapshot:" + key
}

// Put stores v as JSON under key for ttl.
func (sc *SnapshotCache) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", key, err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put snapshot %s: %w", key, err)
	}
	return nil
}

// Fetch decodes the value under key into out, or returns
// domain.ErrNotFound.
func (sc *SnapshotCache) Fetch(ctx context.Context, key string, out any) error {
	data, err := sc.rdb.Get(ctx, snapshotKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("redis: fetch snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("redis: unmarshal snapshot %s: %w", key, err)
	}
	return nil
}
