package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetStatus tracks a bet from submission to settlement.
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusOpen    BetStatus = "open"
	BetStatusWon     BetStatus = "won"
	BetStatusLost    BetStatus = "lost"
	BetStatusVoid    BetStatus = "void"
)

// Settled reports whether the status is terminal.
func (s BetStatus) Settled() bool {
	return s == BetStatusWon || s == BetStatusLost || s == BetStatusVoid
}

// BetRequest is what the operator submits from the dashboard.
type BetRequest struct {
	RowID        string     `json:"row_id,omitempty"`
	EventID      string     `json:"event_id"`
	Bookmaker    string     `json:"bookmaker"`
	BookmakerKey string     `json:"bookmaker_key"`
	Market       string     `json:"market"`
	Selection    string     `json:"selection"`
	Price        float64    `json:"price"`
	Stake        float64    `json:"stake"`
	TrueOdds     *float64   `json:"true_odds,omitempty"`
	PresetID     int64      `json:"preset_id"`
	StartTime    *time.Time `json:"start_time,omitempty"`
}

// Bet is a submitted bet as journaled locally.
type Bet struct {
	ID           int64      `json:"id"`
	ExternalID   string     `json:"external_id,omitempty"`
	ClientRef    string     `json:"client_ref"`
	PresetID     int64      `json:"preset_id"`
	EventID      string     `json:"event_id"`
	Bookmaker    string     `json:"bookmaker"`
	BookmakerKey string     `json:"bookmaker_key"`
	Market       string     `json:"market"`
	Selection    string     `json:"selection"`
	Price        float64    `json:"price"`
	Stake        float64    `json:"stake"`
	TrueOdds     *float64   `json:"true_odds,omitempty"`
	Status       BetStatus  `json:"status"`
	Payout       *float64   `json:"payout,omitempty"`
	PlacedAt     time.Time  `json:"placed_at"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
}

// BetReceipt is the upstream acknowledgement of a submitted bet.
type BetReceipt struct {
	ExternalID string    `json:"external_id"`
	Status     BetStatus `json:"status"`
	PlacedAt   time.Time `json:"placed_at"`
}

// BetSummary aggregates the bet journal for the stats panel.
type BetSummary struct {
	TotalBets   int64   `json:"total_bets"`
	TotalStaked float64 `json:"total_staked"`
	TotalProfit float64 `json:"total_profit"`
	ROI         float64 `json:"roi"`
	WinRate     float64 `json:"win_rate"`
}

// NewBetSummary derives the stats panel figures from settled-bet totals.
// ROI is profit over stake and win rate is wins over decided bets, both as
// percentages; void bets count towards the stake but not the win rate.
func NewBetSummary(totalBets int64, staked, profit float64, wins, losses int64) BetSummary {
	sum := BetSummary{
		TotalBets:   totalBets,
		TotalStaked: round2(staked),
		TotalProfit: round2(profit),
	}
	if staked > 0 {
		sum.ROI = decimal.NewFromFloat(profit).
			Div(decimal.NewFromFloat(staked)).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			InexactFloat64()
	}
	if decided := wins + losses; decided > 0 {
		sum.WinRate = decimal.NewFromInt(wins).
			Div(decimal.NewFromInt(decided)).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			InexactFloat64()
	}
	return sum
}

// Profit returns the realised profit of a settled bet. A won bet without a
// recorded payout is assumed to have paid stake*price.
func (b Bet) Profit() float64 {
	switch b.Status {
	case BetStatusWon:
		if b.Payout != nil {
			return *b.Payout - b.Stake
		}
		return b.Stake*b.Price - b.Stake
	case BetStatusLost:
		return -b.Stake
	}
	return 0
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
