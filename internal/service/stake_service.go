package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/staking"
)

const (
	DefaultFallbackBankroll = 1000.0
	DefaultBalanceTTL       = 30 * time.Second
)

// BalanceFetcher reads a bookmaker balance from the backend.
type BalanceFetcher interface {
	GetBalance(ctx context.Context, bookmakerKey string) (domain.Balance, error)
}

// StakeRequest asks for a stake for either a cached feed row or an explicit
// opportunity. Staking overrides the active preset's configuration.
type StakeRequest struct {
	RowID       string                `json:"row_id,omitempty"`
	Opportunity *domain.Opportunity   `json:"opportunity,omitempty"`
	Staking     *domain.StakingConfig `json:"staking,omitempty"`
}

// StakeService sizes stakes against the bookmaker bankroll.
type StakeService struct {
	balances  domain.BalanceCache
	fetcher   BalanceFetcher
	dashboard *Dashboard
	fallback  float64
	ttl       time.Duration
	logger    *slog.Logger
}

// NewStakeService creates a StakeService. balances may be nil, in which case
// every lookup goes to the backend.
func NewStakeService(balances domain.BalanceCache, fetcher BalanceFetcher, dashboard *Dashboard, fallback float64, ttl time.Duration, logger *slog.Logger) *StakeService {
	if fallback <= 0 {
		fallback = DefaultFallbackBankroll
	}
	if ttl <= 0 {
		ttl = DefaultBalanceTTL
	}
	return &StakeService{
		balances:  balances,
		fetcher:   fetcher,
		dashboard: dashboard,
		fallback:  fallback,
		ttl:       ttl,
		logger:    logger.With(slog.String("component", "stake_service")),
	}
}

// Balance returns the bankroll for a bookmaker: cached value, then backend,
// then the configured fallback. It never fails.
func (s *StakeService) Balance(ctx context.Context, bookmakerKey string) domain.Balance {
	if bookmakerKey == "" {
		return s.fallbackBalance(bookmakerKey)
	}

	if s.balances != nil {
		bal, err := s.balances.Get(ctx, bookmakerKey)
		if err == nil {
			return bal
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "balance cache read failed",
				slog.String("bookmaker", bookmakerKey),
				slog.String("error", err.Error()),
			)
		}
	}

	bal, err := s.fetcher.GetBalance(ctx, bookmakerKey)
	if err != nil {
		s.logger.WarnContext(ctx, "balance unavailable, using fallback",
			slog.String("bookmaker", bookmakerKey),
			slog.Float64("fallback", s.fallback),
			slog.String("error", err.Error()),
		)
		return s.fallbackBalance(bookmakerKey)
	}

	if s.balances != nil {
		if err := s.balances.Set(ctx, bal, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "balance cache write failed",
				slog.String("bookmaker", bookmakerKey),
				slog.String("error", err.Error()),
			)
		}
	}
	return bal
}

// Stake resolves the opportunity, the staking configuration and the bankroll
// and sizes the stake.
func (s *StakeService) Stake(ctx context.Context, req StakeRequest) (domain.StakeResult, error) {
	var opp domain.Opportunity
	switch {
	case req.Opportunity != nil:
		opp = *req.Opportunity
	case req.RowID != "":
		found, ok := s.dashboard.Board().Find(req.RowID)
		if !ok {
			return domain.StakeResult{}, fmt.Errorf("service: stake row %q: %w", req.RowID, domain.ErrNotFound)
		}
		opp = found
	default:
		return domain.StakeResult{}, fmt.Errorf("service: stake: row_id or opportunity is required: %w", domain.ErrInvalidBet)
	}

	var (
		cfg      domain.StakingConfig
		presetID int64
	)
	p, ok := s.dashboard.Preset()
	if ok {
		presetID = p.ID
	}
	if req.Staking != nil {
		cfg = *req.Staking
	} else {
		if !ok {
			return domain.StakeResult{}, fmt.Errorf("service: stake: %w", domain.ErrNoPreset)
		}
		cfg = p.Staking
	}

	bal := s.Balance(ctx, opp.BookmakerKey)
	res := staking.ForOpportunity(cfg, bal.Balance, opp)
	for _, diag := range res.Diagnostics {
		s.logger.WarnContext(ctx, "stake diagnostic",
			slog.String("diagnostic", string(diag)),
			slog.Int64("preset_id", presetID),
			slog.String("strategy", string(cfg.Strategy)),
			slog.String("row_id", opp.RowID),
		)
	}
	return res, nil
}

func (s *StakeService) fallbackBalance(bookmakerKey string) domain.Balance {
	return domain.Balance{
		Bookmaker: bookmakerKey,
		Balance:   s.fallback,
		FetchedAt: time.Now().UTC(),
		Fallback:  true,
	}
}
