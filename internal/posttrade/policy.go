// Package posttrade applies a preset's after-trade policy to the live feed
// once a bet has been accepted upstream.
package posttrade

import (
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// DefaultHiddenTTL is how long after kick-off a hidden line stays suppressed.
const DefaultHiddenTTL = 24 * time.Hour

// TradeRef identifies the line a bet was placed on.
type TradeRef struct {
	EventID   string
	Market    string
	Selection string
	// StartTime of the event, when the caller knows it. Otherwise it is
	// taken from the matching cached opportunity.
	StartTime *time.Time
}

// Outcome is the result of applying a policy to the feed cache.
type Outcome struct {
	Cache   []domain.Opportunity
	Hidden  *domain.HiddenItem
	Changed bool
}

// Apply mutates cache according to policy and builds the hidden-item record
// to persist, if any. Unknown policies behave like none. The returned
// HiddenItem has no preset id; the caller fills it in. Its expiry is ttl past
// kick-off, with non-positive ttl meaning DefaultHiddenTTL.
func Apply(policy domain.AfterTradePolicy, cache []domain.Opportunity, ref TradeRef, now time.Time, ttl time.Duration) Outcome {
	switch policy {
	case domain.AfterTradeKeep:
		changed := false
		for i := range cache {
			if sameSelection(cache[i], ref) {
				cache[i].HasBet = true
				changed = true
			}
		}
		return Outcome{Cache: cache, Changed: changed}

	case domain.AfterTradeRemoveTrade:
		start := startTime(cache, ref)
		kept, changed := remove(cache, func(o domain.Opportunity) bool { return sameSelection(o, ref) })
		market, selection := ref.Market, ref.Selection
		return Outcome{
			Cache:   kept,
			Changed: changed,
			Hidden:  hidden(ref.EventID, &market, &selection, start, now, ttl),
		}

	case domain.AfterTradeRemoveLine:
		start := startTime(cache, ref)
		kept, changed := remove(cache, func(o domain.Opportunity) bool {
			return o.EventID == ref.EventID && o.Market == ref.Market
		})
		market := ref.Market
		return Outcome{
			Cache:   kept,
			Changed: changed,
			Hidden:  hidden(ref.EventID, &market, nil, start, now, ttl),
		}

	case domain.AfterTradeRemoveMatch:
		start := startTime(cache, ref)
		kept, changed := remove(cache, func(o domain.Opportunity) bool { return o.EventID == ref.EventID })
		return Outcome{
			Cache:   kept,
			Changed: changed,
			Hidden:  hidden(ref.EventID, nil, nil, start, now, ttl),
		}

	default:
		return Outcome{Cache: cache}
	}
}

// ExpiryFor returns start+ttl, or now+ttl when the start is unknown.
func ExpiryFor(start *time.Time, now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = DefaultHiddenTTL
	}
	if start == nil || start.IsZero() {
		return now.Add(ttl).UTC()
	}
	return start.Add(ttl).UTC()
}

func hidden(eventID string, market, selection *string, start *time.Time, now time.Time, ttl time.Duration) *domain.HiddenItem {
	return &domain.HiddenItem{
		EventID:       eventID,
		MarketKey:     market,
		SelectionNorm: selection,
		ExpiryAt:      ExpiryFor(start, now, ttl),
	}
}

func sameSelection(o domain.Opportunity, ref TradeRef) bool {
	return o.EventID == ref.EventID && o.Market == ref.Market && o.Selection == ref.Selection
}

func startTime(cache []domain.Opportunity, ref TradeRef) *time.Time {
	if ref.StartTime != nil {
		return ref.StartTime
	}
	for _, o := range cache {
		if o.EventID == ref.EventID && o.StartTime != nil {
			return o.StartTime
		}
	}
	return nil
}

func remove(cache []domain.Opportunity, drop func(domain.Opportunity) bool) ([]domain.Opportunity, bool) {
	kept := cache[:0]
	for _, o := range cache {
		if !drop(o) {
			kept = append(kept, o)
		}
	}
	return kept, len(kept) != len(cache)
}
