package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const betColumns = `id, COALESCE(external_id, ''), client_ref, COALESCE(preset_id, 0), event_id,
	bookmaker, bookmaker_key, market, selection, price, stake, true_odds,
	status, payout, placed_at, settled_at`

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

var _ domain.BetStore = (*BetStore)(nil)

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Create journals a submitted bet and returns its local id. A repeated
// client reference yields domain.ErrAlreadyExists.
func (s *BetStore) Create(ctx context.Context, bet domain.Bet) (int64, error) {
	const query = `
		INSERT INTO bets (
			external_id, client_ref, preset_id, event_id, bookmaker, bookmaker_key,
			market, selection, price, stake, true_odds, status, payout, placed_at, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	placedAt := bet.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
	}
	status := bet.Status
	if status == "" {
		status = domain.BetStatusPending
	}

	var id int64
	err := s.pool.QueryRow(ctx, query,
		nullString(bet.ExternalID), bet.ClientRef, nullID(bet.PresetID), bet.EventID,
		bet.Bookmaker, bet.BookmakerKey, bet.Market, bet.Selection,
		bet.Price, bet.Stake, bet.TrueOdds, string(status), bet.Payout,
		placedAt, bet.SettledAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("postgres: create bet %s: %w", bet.ClientRef, domain.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("postgres: create bet %s: %w", bet.ClientRef, err)
	}
	return id, nil
}

// GetByID returns a single bet.
func (s *BetStore) GetByID(ctx context.Context, id int64) (domain.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1`

	bet, err := scanBet(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %d: %w", id, err)
	}
	return bet, nil
}

// List returns bets newest first, filtered by preset, status and time.
func (s *BetStore) List(ctx context.Context, filter domain.BetFilter) ([]domain.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.PresetID != 0 {
		query += fmt.Sprintf(" AND preset_id = $%d", argIdx)
		args = append(args, filter.PresetID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND placed_at >= $%d", argIdx)
		args = append(args, *filter.Since)
		argIdx++
	}
	if filter.Until != nil {
		query += fmt.Sprintf(" AND placed_at <= $%d", argIdx)
		args = append(args, *filter.Until)
		argIdx++
	}

	query += " ORDER BY placed_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	return s.query(ctx, "list bets", query, args...)
}

// Settle records the result of a bet. Settling an unknown id yields
// domain.ErrNotFound.
func (s *BetStore) Settle(ctx context.Context, id int64, status domain.BetStatus, payout *float64, settledAt time.Time) error {
	const query = `UPDATE bets SET status = $2, payout = $3, settled_at = $4 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status), payout, settledAt)
	if err != nil {
		return fmt.Errorf("postgres: settle bet %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Summary aggregates settled bets. presetID 0 covers every preset.
func (s *BetStore) Summary(ctx context.Context, presetID int64) (domain.BetSummary, error) {
	const query = `
		SELECT
			COUNT(*),
			COALESCE(SUM(stake), 0),
			COALESCE(SUM(CASE
				WHEN status = 'won'  THEN COALESCE(payout, stake * price) - stake
				WHEN status = 'lost' THEN -stake
				ELSE 0 END), 0),
			COUNT(*) FILTER (WHERE status = 'won'),
			COUNT(*) FILTER (WHERE status = 'lost')
		FROM bets
		WHERE status IN ('won', 'lost', 'void')
		  AND ($1::BIGINT = 0 OR preset_id = $1)`

	var (
		total, wins, losses int64
		staked, profit      float64
	)
	if err := s.pool.QueryRow(ctx, query, presetID).Scan(&total, &staked, &profit, &wins, &losses); err != nil {
		return domain.BetSummary{}, fmt.Errorf("postgres: bet summary: %w", err)
	}
	return domain.NewBetSummary(total, staked, profit, wins, losses), nil
}

// ListBefore returns every bet placed before the cutoff, oldest first.
func (s *BetStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE placed_at < $1 ORDER BY placed_at ASC, id ASC`
	return s.query(ctx, "list bets before", query, before)
}

func (s *BetStore) query(ctx context.Context, op, query string, args ...any) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return bets, nil
}

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var status string
	err := row.Scan(
		&b.ID, &b.ExternalID, &b.ClientRef, &b.PresetID, &b.EventID,
		&b.Bookmaker, &b.BookmakerKey, &b.Market, &b.Selection, &b.Price, &b.Stake, &b.TrueOdds,
		&status, &b.Payout, &b.PlacedAt, &b.SettledAt,
	)
	b.Status = domain.BetStatus(status)
	return b, err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
