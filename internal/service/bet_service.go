package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/notify"
	"github.com/alanyoungcy/oddsdesk/internal/posttrade"
)

// DefaultSubmitLockTTL is how long a line stays locked after a submission.
const DefaultSubmitLockTTL = 10 * time.Second

// BetSubmitter places bets with the backend.
type BetSubmitter interface {
	SubmitBet(ctx context.Context, req domain.BetRequest, clientRef string) (domain.BetReceipt, error)
}

// PlaceResult is the outcome of a placed bet.
type PlaceResult struct {
	Bet    domain.Bet          `json:"bet"`
	Hidden *domain.HiddenItem  `json:"hidden_item,omitempty"`
	Feed   domain.FeedSnapshot `json:"feed"`
}

// BetService submits bets, journals them and applies the active preset's
// after-trade policy to the feed.
type BetService struct {
	bets       domain.BetStore
	submitter  BetSubmitter
	locks      domain.LockManager
	bus        domain.SignalBus
	reconciler *posttrade.Reconciler
	dashboard  *Dashboard
	lockTTL    time.Duration
	logger     *slog.Logger
}

// NewBetService creates a BetService. locks and bus may be nil.
func NewBetService(
	bets domain.BetStore,
	submitter BetSubmitter,
	locks domain.LockManager,
	bus domain.SignalBus,
	reconciler *posttrade.Reconciler,
	dashboard *Dashboard,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		bets:       bets,
		submitter:  submitter,
		locks:      locks,
		bus:        bus,
		reconciler: reconciler,
		dashboard:  dashboard,
		lockTTL:    DefaultSubmitLockTTL,
		logger:     logger.With(slog.String("component", "bet_service")),
	}
}

// WithLockTTL overrides the duplicate-submission window. Non-positive values
// are ignored.
func (s *BetService) WithLockTTL(ttl time.Duration) *BetService {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// Place submits a bet. A second submission for the same line within the
// lock TTL fails with domain.ErrLockHeld. A journal failure after a
// successful submission is logged, not returned, since the bet is live.
func (s *BetService) Place(ctx context.Context, req domain.BetRequest) (PlaceResult, error) {
	if err := validateBet(req); err != nil {
		return PlaceResult{}, err
	}

	key := string(domain.Opportunity{
		EventID:      req.EventID,
		BookmakerKey: req.BookmakerKey,
		Market:       req.Market,
		Selection:    req.Selection,
	}.Key())

	unlock := func() {}
	if s.locks != nil {
		u, err := s.locks.Acquire(ctx, "bet:"+key, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return PlaceResult{}, fmt.Errorf("service: bet %s already submitted: %w", key, err)
			}
			return PlaceResult{}, fmt.Errorf("service: bet lock: %w", err)
		}
		unlock = u
	}

	clientRef := uuid.NewString()
	receipt, err := s.submitter.SubmitBet(ctx, req, clientRef)
	if err != nil {
		// Let the operator retry straight away.
		unlock()
		return PlaceResult{}, fmt.Errorf("service: place bet: %w", err)
	}

	bet := domain.Bet{
		ExternalID:   receipt.ExternalID,
		ClientRef:    clientRef,
		PresetID:     req.PresetID,
		EventID:      req.EventID,
		Bookmaker:    req.Bookmaker,
		BookmakerKey: req.BookmakerKey,
		Market:       req.Market,
		Selection:    req.Selection,
		Price:        req.Price,
		Stake:        req.Stake,
		TrueOdds:     req.TrueOdds,
		Status:       receipt.Status,
		PlacedAt:     receipt.PlacedAt,
	}
	id, err := s.bets.Create(ctx, bet)
	if err != nil {
		s.logger.ErrorContext(ctx, "bet placed but not journaled",
			slog.String("client_ref", clientRef),
			slog.String("external_id", receipt.ExternalID),
			slog.String("error", err.Error()),
		)
	}
	bet.ID = id

	s.logger.InfoContext(ctx, "bet placed",
		slog.Int64("id", bet.ID),
		slog.String("external_id", bet.ExternalID),
		slog.String("line", key),
		slog.Float64("stake", bet.Stake),
		slog.Float64("price", bet.Price),
	)
	s.announce(ctx, bet)

	res := PlaceResult{Bet: bet}
	res.Feed, res.Hidden = s.reconcile(ctx, req)
	return res, nil
}

// reconcile applies the after-trade policy when the bet belongs to the
// preset on screen.
func (s *BetService) reconcile(ctx context.Context, req domain.BetRequest) (domain.FeedSnapshot, *domain.HiddenItem) {
	board := s.dashboard.Board()
	preset, ok := s.dashboard.Preset()
	if !ok || board.PresetID() != preset.ID || (req.PresetID != 0 && req.PresetID != preset.ID) {
		return board.Snapshot(), nil
	}

	snap, hidden := s.reconciler.Reconcile(ctx, board, preset.ID, preset.AfterTrade, posttrade.TradeRef{
		EventID:   req.EventID,
		Market:    req.Market,
		Selection: req.Selection,
		StartTime: req.StartTime,
	})
	s.dashboard.PublishFeed(snap)
	return snap, hidden
}

// Settle records the result of a bet.
func (s *BetService) Settle(ctx context.Context, id int64, status domain.BetStatus, payout *float64) (domain.Bet, error) {
	if !status.Settled() {
		return domain.Bet{}, fmt.Errorf("service: settle bet %d: status %q is not terminal: %w", id, status, domain.ErrInvalidBet)
	}
	if payout != nil && *payout < 0 {
		return domain.Bet{}, fmt.Errorf("service: settle bet %d: negative payout: %w", id, domain.ErrInvalidBet)
	}

	if err := s.bets.Settle(ctx, id, status, payout, time.Now().UTC()); err != nil {
		return domain.Bet{}, fmt.Errorf("service: settle bet %d: %w", id, err)
	}
	bet, err := s.bets.GetByID(ctx, id)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("service: settle bet %d: %w", id, err)
	}
	s.dashboard.Publish(domain.ChannelBets, bet)
	return bet, nil
}

// List returns journaled bets.
func (s *BetService) List(ctx context.Context, filter domain.BetFilter) ([]domain.Bet, error) {
	bets, err := s.bets.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: list bets: %w", err)
	}
	return bets, nil
}

func (s *BetService) announce(ctx context.Context, bet domain.Bet) {
	if s.bus != nil {
		if payload, err := json.Marshal(bet); err == nil {
			if err := s.bus.StreamAppend(ctx, domain.StreamBets, payload); err != nil {
				s.logger.WarnContext(ctx, "bet stream append failed", slog.String("error", err.Error()))
			}
		}
	}
	s.dashboard.Publish(domain.ChannelBets, bet)
	s.dashboard.Alert(notify.EventBetPlaced, "Bet placed",
		fmt.Sprintf("%s %s %s: %.2f @ %.2f (%s)", bet.EventID, bet.Market, bet.Selection, bet.Stake, bet.Price, bet.BookmakerKey))
}

func validateBet(req domain.BetRequest) error {
	switch {
	case req.EventID == "":
		return fmt.Errorf("service: event_id is required: %w", domain.ErrInvalidBet)
	case req.BookmakerKey == "":
		return fmt.Errorf("service: bookmaker_key is required: %w", domain.ErrInvalidBet)
	case req.Market == "" || req.Selection == "":
		return fmt.Errorf("service: market and selection are required: %w", domain.ErrInvalidBet)
	case req.Price <= 1:
		return fmt.Errorf("service: price must be above 1: %w", domain.ErrInvalidBet)
	case req.Stake <= 0:
		return fmt.Errorf("service: stake must be positive: %w", domain.ErrInvalidBet)
	}
	return nil
}
