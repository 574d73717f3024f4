package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

const presetColumns = `id, name, active, staking_strategy, default_stake, percent_risk,
	kelly_multiplier, max_stake, after_trade_action, sort_by, sort_order, created_at, updated_at`

// PresetStore implements domain.PresetStore using PostgreSQL.
type PresetStore struct {
	pool *pgxpool.Pool
}

var _ domain.PresetStore = (*PresetStore)(nil)

// NewPresetStore creates a new PresetStore backed by the given connection pool.
func NewPresetStore(pool *pgxpool.Pool) *PresetStore {
	return &PresetStore{pool: pool}
}

// Get retrieves a preset by id.
func (s *PresetStore) Get(ctx context.Context, id int64) (domain.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets WHERE id = $1`

	p, err := scanPreset(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Preset{}, domain.ErrNotFound
		}
		return domain.Preset{}, fmt.Errorf("postgres: get preset %d: %w", id, err)
	}
	return p, nil
}

// List returns presets ordered by name.
func (s *PresetStore) List(ctx context.Context, activeOnly bool) ([]domain.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list presets: %w", err)
	}
	defer rows.Close()

	var presets []domain.Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan preset: %w", err)
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list presets rows: %w", err)
	}
	return presets, nil
}

// Save inserts a preset (ID 0) or updates it by id, returning the id.
func (s *PresetStore) Save(ctx context.Context, p domain.Preset) (int64, error) {
	policy := p.AfterTrade
	if policy == "" {
		policy = domain.AfterTradeKeep
	}
	strategy := p.Staking.Strategy
	if strategy == "" {
		strategy = domain.StrategyFixed
	}
	sortBy, sortOrder := p.SortBy, p.SortOrder
	if sortBy == "" {
		sortBy = "edge"
	}
	if sortOrder == "" {
		sortOrder = "desc"
	}

	args := []any{
		p.Name, p.Active, string(strategy), p.Staking.DefaultStake, p.Staking.PercentRisk,
		p.Staking.KellyMultiplier, p.Staking.MaxStake, string(policy), sortBy, sortOrder,
	}

	if p.ID == 0 {
		const insert = `
			INSERT INTO presets (
				name, active, staking_strategy, default_stake, percent_risk,
				kelly_multiplier, max_stake, after_trade_action, sort_by, sort_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`
		var id int64
		if err := s.pool.QueryRow(ctx, insert, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("postgres: insert preset %s: %w", p.Name, err)
		}
		return id, nil
	}

	const update = `
		UPDATE presets SET
			name = $1, active = $2, staking_strategy = $3, default_stake = $4, percent_risk = $5,
			kelly_multiplier = $6, max_stake = $7, after_trade_action = $8, sort_by = $9,
			sort_order = $10, updated_at = NOW()
		WHERE id = $11`
	tag, err := s.pool.Exec(ctx, update, append(args, p.ID)...)
	if err != nil {
		return 0, fmt.Errorf("postgres: update preset %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, domain.ErrNotFound
	}
	return p.ID, nil
}

func scanPreset(row pgx.Row) (domain.Preset, error) {
	var p domain.Preset
	var strategy, policy string
	err := row.Scan(
		&p.ID, &p.Name, &p.Active, &strategy, &p.Staking.DefaultStake, &p.Staking.PercentRisk,
		&p.Staking.KellyMultiplier, &p.Staking.MaxStake, &policy, &p.SortBy, &p.SortOrder,
		&p.CreatedAt, &p.UpdatedAt,
	)
	p.Staking.Strategy = domain.StakingStrategy(strategy)
	p.AfterTrade = domain.AfterTradePolicy(policy)
	return p, err
}
