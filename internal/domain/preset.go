package domain

import "time"

// AfterTradePolicy decides what happens to the feed once a bet is placed.
type AfterTradePolicy string

const (
	AfterTradeNone        AfterTradePolicy = "none"
	AfterTradeKeep        AfterTradePolicy = "keep"
	AfterTradeRemoveTrade AfterTradePolicy = "remove_trade"
	AfterTradeRemoveLine  AfterTradePolicy = "remove_line"
	AfterTradeRemoveMatch AfterTradePolicy = "remove_match"
)

// Valid reports whether p is a known policy.
func (p AfterTradePolicy) Valid() bool {
	switch p {
	case AfterTradeNone, AfterTradeKeep, AfterTradeRemoveTrade, AfterTradeRemoveLine, AfterTradeRemoveMatch:
		return true
	}
	return false
}

// Preset is a named operator profile: staking configuration, feed ordering
// and after-trade policy.
type Preset struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Active     bool             `json:"active"`
	Staking    StakingConfig    `json:"staking"`
	AfterTrade AfterTradePolicy `json:"after_trade_action"`
	SortBy     string           `json:"sort_by"`
	SortOrder  string           `json:"sort_order"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// HiddenItem is a suppression rule for a preset's feed. A nil MarketKey
// hides the whole match; a nil SelectionNorm hides the whole market line.
type HiddenItem struct {
	ID            int64     `json:"id,omitempty"`
	PresetID      int64     `json:"preset_id"`
	EventID       string    `json:"event_id"`
	MarketKey     *string   `json:"market_key,omitempty"`
	SelectionNorm *string   `json:"selection_norm,omitempty"`
	ExpiryAt      time.Time `json:"expiry_at"`
	Persisted     bool      `json:"persisted"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}
