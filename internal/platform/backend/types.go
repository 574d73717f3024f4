package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// flexTime decodes ISO-8601 timestamps with or without a zone designator.
// Naive values are taken as UTC.
type flexTime struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		f.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		f.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		f.Time = t.UTC()
		return nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			f.Time = t
			return nil
		}
	}
	return fmt.Errorf("backend: unrecognised timestamp %q", s)
}

func (f flexTime) ptr() *time.Time {
	if f.IsZero() {
		return nil
	}
	t := f.Time
	return &t
}

// --------------------------------------------------------------------------
// Trade feed
// --------------------------------------------------------------------------

// APIOpportunity is one row of the trade feed as sent by the backend.
type APIOpportunity struct {
	RowID              string         `json:"row_id"`
	EventID            string         `json:"event_id"`
	Home               string         `json:"home"`
	Away               string         `json:"away"`
	StartTime          flexTime       `json:"start_time"`
	Market             string         `json:"market"`
	Selection          string         `json:"selection"`
	SelectionName      string         `json:"selection_name"`
	Bookmaker          string         `json:"bookmaker"`
	BookmakerKey       string         `json:"bookmaker_key"`
	Sport              string         `json:"sport"`
	League             string         `json:"league"`
	Price              float64        `json:"price"`
	TrueOdds           *float64       `json:"true_odds"`
	HasBet             bool           `json:"has_bet"`
	Edge               *float64       `json:"edge"`
	ImpliedProbability *float64       `json:"implied_probability"`
	Point              *float64       `json:"point"`
	URL                *string        `json:"url"`
	CalculatedStake    *float64       `json:"calculated_stake"`
	CalculationDetails map[string]any `json:"calculation_details"`
	Timestamp          flexTime       `json:"timestamp"`
}

// ToDomain converts the wire row to a domain.Opportunity.
func (a *APIOpportunity) ToDomain() domain.Opportunity {
	o := domain.Opportunity{
		RowID:              a.RowID,
		EventID:            a.EventID,
		Home:               a.Home,
		Away:               a.Away,
		League:             a.League,
		Sport:              a.Sport,
		StartTime:          a.StartTime.ptr(),
		Market:             a.Market,
		Selection:          a.Selection,
		SelectionName:      a.SelectionName,
		Point:              a.Point,
		Bookmaker:          a.Bookmaker,
		BookmakerKey:       a.BookmakerKey,
		Price:              a.Price,
		TrueOdds:           a.TrueOdds,
		ImpliedProbability: a.ImpliedProbability,
		Edge:               a.Edge,
		HasBet:             a.HasBet,
		CalculatedStake:    a.CalculatedStake,
		CalculationDetails: a.CalculationDetails,
		Timestamp:          a.Timestamp.ptr(),
	}
	if a.URL != nil {
		o.URL = *a.URL
	}
	return o
}

// FeedMessage is one trade-feed frame. The backend's own odds movement
// lists are carried but not used; flashes are derived locally.
type FeedMessage struct {
	Opportunities []APIOpportunity `json:"opportunities"`
	OddsIncreased []string         `json:"odds_increased"`
	OddsDecreased []string         `json:"odds_decreased"`
}

// DecodeFeedMessage parses a trade-feed frame into domain opportunities.
// A frame without an opportunities field is rejected.
func DecodeFeedMessage(raw []byte) ([]domain.Opportunity, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("backend: decode feed message: %w", err)
	}
	if _, ok := probe["opportunities"]; !ok {
		return nil, fmt.Errorf("backend: decode feed message: missing opportunities")
	}

	var msg FeedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("backend: decode feed message: %w", err)
	}

	opps := make([]domain.Opportunity, 0, len(msg.Opportunities))
	for i := range msg.Opportunities {
		opps = append(opps, msg.Opportunities[i].ToDomain())
	}
	return opps, nil
}

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// APIBalance is the response of the bookmaker balance endpoint.
type APIBalance struct {
	Balance  *float64 `json:"balance"`
	Currency string   `json:"currency"`
	Key      string   `json:"key"`
	Title    string   `json:"title"`
}

// APIBetCreate is the bet submission payload.
type APIBetCreate struct {
	EventID      string   `json:"event_id"`
	BookmakerKey string   `json:"bookmaker_key"`
	MarketKey    string   `json:"market_key"`
	Selection    string   `json:"selection"`
	Stake        float64  `json:"stake"`
	Price        float64  `json:"price"`
	TrueOdds     *float64 `json:"true_odds,omitempty"`
	PresetID     *int64   `json:"preset_id,omitempty"`
	ClientRef    string   `json:"client_ref"`
}

// APIBet is the backend's view of a placed bet.
type APIBet struct {
	ID         int64    `json:"id"`
	ExternalID *string  `json:"external_id"`
	Status     string   `json:"status"`
	PlacedAt   flexTime `json:"placed_at"`
}

// APIHiddenItemCreate is the hidden-item persistence payload.
type APIHiddenItemCreate struct {
	EventID       string    `json:"event_id"`
	MarketKey     *string   `json:"market_key"`
	SelectionNorm *string   `json:"selection_norm"`
	ExpiryAt      time.Time `json:"expiry_at"`
}

// APIFixture is one row of the fixtures list.
type APIFixture struct {
	ID             string   `json:"id"`
	StartTime      flexTime `json:"start_time"`
	Home           string   `json:"home"`
	Away           string   `json:"away"`
	Sport          string   `json:"sport"`
	League         string   `json:"league"`
	BookmakerCount int      `json:"bookmaker_count"`
	OddsCount      int      `json:"odds_count"`
	Markets        []string `json:"markets"`
}

// ToDomain converts the wire row to a domain.Fixture.
func (a *APIFixture) ToDomain() domain.Fixture {
	return domain.Fixture{
		EventID:        a.ID,
		Sport:          a.Sport,
		League:         a.League,
		Home:           a.Home,
		Away:           a.Away,
		StartTime:      a.StartTime.Time,
		BookmakerCount: a.BookmakerCount,
		OddsCount:      a.OddsCount,
		Markets:        a.Markets,
	}
}

func betStatus(s string) domain.BetStatus {
	switch st := domain.BetStatus(strings.ToLower(s)); st {
	case domain.BetStatusPending, domain.BetStatusOpen, domain.BetStatusWon, domain.BetStatusLost, domain.BetStatusVoid:
		return st
	}
	return domain.BetStatusOpen
}
