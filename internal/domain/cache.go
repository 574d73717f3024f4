package domain

import (
	"context"
	"time"
)

// BalanceCache keeps recently fetched bookmaker balances.
type BalanceCache interface {
	Get(ctx context.Context, bookmaker string) (Balance, error)
	Set(ctx context.Context, bal Balance, ttl time.Duration) error
}

// SnapshotCache stores JSON documents (fixtures, stats) under a key.
type SnapshotCache interface {
	Put(ctx context.Context, key string, v any, ttl time.Duration) error
	Fetch(ctx context.Context, key string, out any) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamTail returns up to count of the newest stream entries, oldest
	// first.
	StreamTail(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}
