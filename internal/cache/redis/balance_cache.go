package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// BalanceCache implements domain.BalanceCache using Redis hashes.
//
// Key schema:
//
//	oddsdesk:balance:{bookmaker} - hash {balance, currency, ts}
type BalanceCache struct {
	rdb *redis.Client
}

var _ domain.BalanceCache = (*BalanceCache)(nil)

// NewBalanceCache creates a BalanceCache backed by the given Client.
func NewBalanceCache(c *Client) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying()}
}

func balanceKey(bookmaker string) string {
	return keyPrefix + "balance:" + bookmaker
}

// Set stores a balance for ttl.
func (bc *BalanceCache) Set(ctx context.Context, bal domain.Balance, ttl time.Duration) error {
	key := balanceKey(bal.Bookmaker)
	fetched := bal.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}

	pipe := bc.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"balance":  strconv.FormatFloat(bal.Balance, 'f', -1, 64),
		"currency": bal.Currency,
		"ts":       strconv.FormatInt(fetched.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set balance %s: %w", bal.Bookmaker, err)
	}
	return nil
}

// Get returns the cached balance, or domain.ErrNotFound.
func (bc *BalanceCache) Get(ctx context.Context, bookmaker string) (domain.Balance, error) {
	vals, err := bc.rdb.HGetAll(ctx, balanceKey(bookmaker)).Result()
	if err != nil {
		return domain.Balance{}, fmt.Errorf("redis: get balance %s: %w", bookmaker, err)
	}
	return parseBalance(bookmaker, vals)
}

func parseBalance(bookmaker string, vals map[string]string) (domain.Balance, error) {
	raw, ok := vals["balance"]
	if !ok {
		return domain.Balance{}, domain.ErrNotFound
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("redis: parse balance %s: %w", bookmaker, err)
	}

	bal := domain.Balance{
		Bookmaker: bookmaker,
		Balance:   amount,
		Currency:  vals["currency"],
	}
	if ts, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		bal.FetchedAt = time.Unix(0, ts).UTC()
	}
	return bal, nil
}
