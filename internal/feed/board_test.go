package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

func TestBoard_ApplyTracksFlashesAcrossMessages(t *testing.T) {
	b := NewBoard(20)
	b.Reset(7, "edge", "desc")

	first := b.Apply([]domain.Opportunity{opp("E1", "h2h", "home", 2.10, f64(0.04))})
	require.Len(t, first.Rows, 1)
	assert.Equal(t, domain.FlashNone, first.Rows[0].Flash)
	assert.Equal(t, int64(7), first.PresetID)

	second := b.Apply([]domain.Opportunity{opp("E1", "h2h", "home", 2.30, f64(0.06))})
	require.Len(t, second.Rows, 1)
	assert.Equal(t, domain.FlashUp, second.Rows[0].Flash)
	assert.Equal(t, 1, second.Total)
}

func TestBoard_MutateClearsFlashes(t *testing.T) {
	b := NewBoard(20)
	b.Apply([]domain.Opportunity{opp("E1", "h2h", "home", 2.10, f64(0.04))})
	b.Apply([]domain.Opportunity{
		opp("E1", "h2h", "home", 1.90, f64(0.02)),
		opp("E2", "h2h", "away", 3.00, f64(0.08)),
	})

	snap := b.Mutate(func(cache []domain.Opportunity) []domain.Opportunity {
		return cache[1:]
	})

	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "E2", snap.Rows[0].EventID)
	assert.Equal(t, domain.FlashNone, snap.Rows[0].Flash)
	assert.Equal(t, 1, b.Len())
}

func TestBoard_ResetDropsHistory(t *testing.T) {
	b := NewBoard(20)
	b.Reset(1, "", "")
	b.Apply([]domain.Opportunity{opp("E1", "h2h", "home", 2.10, nil)})

	b.Reset(2, "price", "asc")
	snap := b.Apply([]domain.Opportunity{opp("E1", "h2h", "home", 2.50, nil)})

	require.Len(t, snap.Rows, 1)
	assert.Equal(t, domain.FlashNone, snap.Rows[0].Flash)
	assert.Equal(t, "price", snap.SortBy)
	assert.Equal(t, "asc", snap.SortOrder)
	assert.Equal(t, int64(2), b.PresetID())
}

func TestBoard_Find(t *testing.T) {
	b := NewBoard(20)
	o := opp("E1", "h2h", "home", 2.10, nil)
	o.RowID = "E1_smarkets_h2h_home"
	b.Apply([]domain.Opportunity{o})

	got, ok := b.Find("E1|smarkets|h2h|home")
	require.True(t, ok)
	assert.Equal(t, "E1", got.EventID)

	_, ok = b.Find("E1_smarkets_h2h_home")
	assert.True(t, ok)

	_, ok = b.Find("missing")
	assert.False(t, ok)
}
