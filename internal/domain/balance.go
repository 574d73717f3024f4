package domain

import "time"

// Balance is the available funds at one bookmaker.
type Balance struct {
	Bookmaker string    `json:"bookmaker"`
	Balance   float64   `json:"balance"`
	Currency  string    `json:"currency"`
	FetchedAt time.Time `json:"fetched_at"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// Fixture is an upcoming or in-play event shown in the fixtures panel.
type Fixture struct {
	EventID        string    `json:"event_id"`
	Sport          string    `json:"sport"`
	League         string    `json:"league"`
	Home           string    `json:"home"`
	Away           string    `json:"away"`
	StartTime      time.Time `json:"start_time"`
	BookmakerCount int       `json:"bookmaker_count"`
	OddsCount      int       `json:"odds_count"`
	Markets        []string  `json:"markets,omitempty"`
}
