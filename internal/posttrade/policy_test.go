package posttrade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

var (
	kickoff = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	now     = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
)

func opp(event, book, market, sel string, price float64) domain.Opportunity {
	start := kickoff
	return domain.Opportunity{
		EventID:      event,
		Bookmaker:    book,
		BookmakerKey: book,
		Market:       market,
		Selection:    sel,
		Price:        price,
		StartTime:    &start,
	}
}

func sampleCache() []domain.Opportunity {
	return []domain.Opportunity{
		opp("E1", "bet365", "h2h", "home", 2.10),
		opp("E1", "pinnacle", "h2h", "home", 2.05),
		opp("E1", "bet365", "h2h", "away", 3.40),
		opp("E1", "bet365", "totals", "over", 1.90),
		opp("E2", "bet365", "h2h", "home", 1.70),
	}
}

func keys(cache []domain.Opportunity) []string {
	out := make([]string, 0, len(cache))
	for _, o := range cache {
		out = append(out, string(o.Key()))
	}
	return out
}

func TestApply_KeepMarksEverySelectionMatch(t *testing.T) {
	out := Apply(domain.AfterTradeKeep, sampleCache(), TradeRef{EventID: "E1", Market: "h2h", Selection: "home"}, now, DefaultHiddenTTL)

	require.Len(t, out.Cache, 5)
	assert.True(t, out.Changed)
	assert.Nil(t, out.Hidden)
	assert.True(t, out.Cache[0].HasBet)
	assert.True(t, out.Cache[1].HasBet)
	assert.False(t, out.Cache[2].HasBet)
	assert.False(t, out.Cache[3].HasBet)
	assert.False(t, out.Cache[4].HasBet)
}

func TestApply_NoneLeavesCacheUntouched(t *testing.T) {
	cache := sampleCache()
	out := Apply(domain.AfterTradeNone, cache, TradeRef{EventID: "E1", Market: "h2h", Selection: "home"}, now, DefaultHiddenTTL)

	assert.False(t, out.Changed)
	assert.Nil(t, out.Hidden)
	assert.Equal(t, keys(sampleCache()), keys(out.Cache))
}

func TestApply_UnknownPolicyBehavesLikeNone(t *testing.T) {
	out := Apply(domain.AfterTradePolicy("archive"), sampleCache(), TradeRef{EventID: "E1", Market: "h2h", Selection: "home"}, now, DefaultHiddenTTL)
	assert.False(t, out.Changed)
	assert.Nil(t, out.Hidden)
	assert.Len(t, out.Cache, 5)
}

func TestApply_RemoveTrade(t *testing.T) {
	out := Apply(domain.AfterTradeRemoveTrade, sampleCache(), TradeRef{EventID: "E1", Market: "h2h", Selection: "home"}, now, DefaultHiddenTTL)

	assert.True(t, out.Changed)
	assert.Equal(t, []string{
		"E1|bet365|h2h|away",
		"E1|bet365|totals|over",
		"E2|bet365|h2h|home",
	}, keys(out.Cache))

	require.NotNil(t, out.Hidden)
	assert.Equal(t, "E1", out.Hidden.EventID)
	require.NotNil(t, out.Hidden.MarketKey)
	require.NotNil(t, out.Hidden.SelectionNorm)
	assert.Equal(t, "h2h", *out.Hidden.MarketKey)
	assert.Equal(t, "home", *out.Hidden.SelectionNorm)
	assert.Equal(t, kickoff.Add(24*time.Hour), out.Hidden.ExpiryAt)
}

func TestApply_RemoveLineOnlyTouchesThatMarket(t *testing.T) {
	out := Apply(domain.AfterTradeRemoveLine, sampleCache(), TradeRef{EventID: "E1", Market: "h2h", Selection: "home"}, now, DefaultHiddenTTL)

	assert.True(t, out.Changed)
	assert.Equal(t, []string{
		"E1|bet365|totals|over",
		"E2|bet365|h2h|home",
	}, keys(out.Cache))

	require.NotNil(t, out.Hidden)
	require.NotNil(t, out.Hidden.MarketKey)
	assert.Equal(t, "h2h", *out.Hidden.MarketKey)
	assert.Nil(t, out.Hidden.SelectionNorm)
}

func TestApply_RemoveMatch(t *testing.T) {
	out := Apply(domain.AfterTradeRemoveMatch, sampleCache(), TradeRef{EventID: "E1", Market: "h2h", Selection: "home"}, now, DefaultHiddenTTL)

	assert.Equal(t, []string{"E2|bet365|h2h|home"}, keys(out.Cache))
	require.NotNil(t, out.Hidden)
	assert.Nil(t, out.Hidden.MarketKey)
	assert.Nil(t, out.Hidden.SelectionNorm)
	assert.Equal(t, "E1", out.Hidden.EventID)
}

func TestApply_RemoveWithNoMatchStillBuildsHiddenItem(t *testing.T) {
	out := Apply(domain.AfterTradeRemoveMatch, sampleCache(), TradeRef{EventID: "E9", Market: "h2h", Selection: "home"}, now, DefaultHiddenTTL)

	assert.False(t, out.Changed)
	assert.Len(t, out.Cache, 5)
	require.NotNil(t, out.Hidden)
	// Start time unknown: expiry counts from now.
	assert.Equal(t, now.Add(24*time.Hour), out.Hidden.ExpiryAt)
}

func TestApply_ExplicitStartTimeWins(t *testing.T) {
	start := kickoff.Add(48 * time.Hour)
	out := Apply(domain.AfterTradeRemoveTrade, sampleCache(), TradeRef{
		EventID: "E1", Market: "h2h", Selection: "home", StartTime: &start,
	}, now, DefaultHiddenTTL)

	require.NotNil(t, out.Hidden)
	assert.Equal(t, start.Add(24*time.Hour), out.Hidden.ExpiryAt)
}

func TestExpiryFor(t *testing.T) {
	assert.Equal(t, now.Add(24*time.Hour), ExpiryFor(nil, now, DefaultHiddenTTL))
	zero := time.Time{}
	assert.Equal(t, now.Add(24*time.Hour), ExpiryFor(&zero, now, DefaultHiddenTTL))
	assert.Equal(t, kickoff.Add(24*time.Hour), ExpiryFor(&kickoff, now, DefaultHiddenTTL))
	assert.Equal(t, kickoff.Add(24*time.Hour), ExpiryFor(&kickoff, now, 0))
	assert.Equal(t, kickoff.Add(6*time.Hour), ExpiryFor(&kickoff, now, 6*time.Hour))
	assert.Equal(t, now.Add(90*time.Minute), ExpiryFor(nil, now, 90*time.Minute))
}

func TestApply_CustomTTL(t *testing.T) {
	out := Apply(domain.AfterTradeRemoveLine, sampleCache(),
		TradeRef{EventID: "E1", Market: "h2h", Selection: "home"}, now, 2*time.Hour)

	require.NotNil(t, out.Hidden)
	assert.Equal(t, kickoff.Add(2*time.Hour), out.Hidden.ExpiryAt)
}
