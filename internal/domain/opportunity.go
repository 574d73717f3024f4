package domain

import (
	"strings"
	"time"
)

// Opportunity is one quoted price for one outcome of one event at one
// bookmaker, as delivered by the upstream trade feed.
type Opportunity struct {
	RowID              string         `json:"row_id,omitempty"`
	EventID            string         `json:"event_id"`
	Home               string         `json:"home"`
	Away               string         `json:"away"`
	League             string         `json:"league"`
	Sport              string         `json:"sport"`
	StartTime          *time.Time     `json:"start_time"`
	Market             string         `json:"market"`
	Selection          string         `json:"selection"`
	SelectionName      string         `json:"selection_name,omitempty"`
	Point              *float64       `json:"point"`
	Bookmaker          string         `json:"bookmaker"`
	BookmakerKey       string         `json:"bookmaker_key"`
	Price              float64        `json:"price"`
	TrueOdds           *float64       `json:"true_odds"`
	ImpliedProbability *float64       `json:"implied_probability"`
	Edge               *float64       `json:"edge"`
	HasBet             bool           `json:"has_bet"`
	CalculatedStake    *float64       `json:"calculated_stake,omitempty"`
	CalculationDetails map[string]any `json:"calculation_details,omitempty"`
	URL                string         `json:"url,omitempty"`
	Timestamp          *time.Time     `json:"timestamp,omitempty"`
}

// DiffKey identifies a single quoted line for change detection. The point
// (handicap/total line) is not part of the key.
type DiffKey string

// Key returns the diff key event_id|bookmaker_key|market|selection.
func (o Opportunity) Key() DiffKey {
	return DiffKey(strings.Join([]string{o.EventID, o.BookmakerKey, o.Market, o.Selection}, "|"))
}

// Flash is the price-direction marker for a row after a feed update.
type Flash string

const (
	FlashNone Flash = ""
	FlashUp   Flash = "up"
	FlashDown Flash = "down"
)

// FeedRow is an opportunity as displayed, with its flash marker.
type FeedRow struct {
	Opportunity
	Flash Flash `json:"flash,omitempty"`
}

// FeedSnapshot is the ranked, truncated view of the feed cache that is
// served to dashboard clients.
type FeedSnapshot struct {
	PresetID  int64     `json:"preset_id"`
	Rows      []FeedRow `json:"rows"`
	Total     int       `json:"total"`
	SortBy    string    `json:"sort_by"`
	SortOrder string    `json:"sort_order"`
	UpdatedAt time.Time `json:"updated_at"`
}
