package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// HiddenItemStore implements domain.HiddenItemStore using PostgreSQL.
type HiddenItemStore struct {
	pool *pgxpool.Pool
}

var _ domain.HiddenItemStore = (*HiddenItemStore)(nil)

// NewHiddenItemStore creates a new HiddenItemStore backed by the given connection pool.
func NewHiddenItemStore(pool *pgxpool.Pool) *HiddenItemStore {
	return &HiddenItemStore{pool: pool}
}

// Record journals a hide request together with whether the backend
// accepted it.
func (s *HiddenItemStore) Record(ctx context.Context, item domain.HiddenItem) error {
	const query = `
		INSERT INTO hidden_items (preset_id, event_id, market_key, selection_norm, expiry_at, persisted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		item.PresetID, item.EventID, item.MarketKey, item.SelectionNorm,
		item.ExpiryAt, item.Persisted, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record hidden item %s: %w", item.EventID, err)
	}
	return nil
}

// ListActive returns the preset's hidden items that have not yet expired.
func (s *HiddenItemStore) ListActive(ctx context.Context, presetID int64, now time.Time) ([]domain.HiddenItem, error) {
	const query = `
		SELECT id, preset_id, event_id, market_key, selection_norm, expiry_at, persisted, created_at
		FROM hidden_items
		WHERE preset_id = $1 AND expiry_at > $2
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, presetID, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list hidden items: %w", err)
	}
	defer rows.Close()

	var items []domain.HiddenItem
	for rows.Next() {
		var h domain.HiddenItem
		if err := rows.Scan(
			&h.ID, &h.PresetID, &h.EventID, &h.MarketKey, &h.SelectionNorm,
			&h.ExpiryAt, &h.Persisted, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan hidden item: %w", err)
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list hidden items rows: %w", err)
	}
	return items, nil
}

// PurgeExpired deletes hidden items whose expiry has passed and returns how
// many were removed.
func (s *HiddenItemStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM hidden_items WHERE expiry_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge hidden items: %w", err)
	}
	return tag.RowsAffected(), nil
}
