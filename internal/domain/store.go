package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BetFilter narrows a bet listing. Zero values mean "any".
type BetFilter struct {
	ListOpts
	PresetID int64
	Status   BetStatus
}

// BetStore persists the local bet journal.
type BetStore interface {
	Create(ctx context.Context, bet Bet) (int64, error)
	GetByID(ctx context.Context, id int64) (Bet, error)
	List(ctx context.Context, filter BetFilter) ([]Bet, error)
	Settle(ctx context.Context, id int64, status BetStatus, payout *float64, settledAt time.Time) error
	Summary(ctx context.Context, presetID int64) (BetSummary, error)
	ListBefore(ctx context.Context, before time.Time) ([]Bet, error)
}

// PresetStore persists operator profiles.
type PresetStore interface {
	Get(ctx context.Context, id int64) (Preset, error)
	List(ctx context.Context, activeOnly bool) ([]Preset, error)
	Save(ctx context.Context, p Preset) (int64, error)
}

// HiddenItemStore journals hide requests issued after trades.
type HiddenItemStore interface {
	Record(ctx context.Context, item HiddenItem) error
	ListActive(ctx context.Context, presetID int64, now time.Time) ([]HiddenItem, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
