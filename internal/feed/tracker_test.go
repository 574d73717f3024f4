package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

func f64(v float64) *float64 { return &v }

func opp(event, market, selection string, price float64, edge *float64) domain.Opportunity {
	return domain.Opportunity{
		EventID:      event,
		BookmakerKey: "smarkets",
		Bookmaker:    "Smarkets",
		Market:       market,
		Selection:    selection,
		Price:        price,
		Edge:         edge,
	}
}

func TestOpportunityKey(t *testing.T) {
	o := opp("E1", "h2h", "home", 2.1, nil)
	assert.Equal(t, domain.DiffKey("E1|smarkets|h2h|home"), o.Key())

	withPoint := o
	withPoint.Point = f64(2.5)
	assert.Equal(t, o.Key(), withPoint.Key())
}

func TestReconcile_Flashes(t *testing.T) {
	k := opp("E1", "h2h", "home", 0, nil).Key()
	prev := History{k: 2.10}

	tests := []struct {
		name  string
		price float64
		want  domain.Flash
	}{
		{"price up", 2.30, domain.FlashUp},
		{"price down", 1.90, domain.FlashDown},
		{"unchanged", 2.10, domain.FlashNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Reconcile(prev, []domain.Opportunity{opp("E1", "h2h", "home", tt.price, f64(0.05))}, "edge", "desc")
			assert.Equal(t, tt.want, res.Flashes[k])
			assert.Equal(t, tt.price, res.History[k])
		})
	}

	assert.Equal(t, 2.10, prev[k], "previous history must not be modified")
}

func TestReconcile_NewKeyDoesNotFlash(t *testing.T) {
	o := opp("E2", "totals", "over", 1.95, nil)

	res := Reconcile(History{}, []domain.Opportunity{o}, "", "")

	assert.Equal(t, domain.FlashNone, res.Flashes[o.Key()])
	assert.Equal(t, 1.95, res.History[o.Key()])
}

func TestReconcile_HistoryUpdatedBeyondDisplayLimit(t *testing.T) {
	var opps []domain.Opportunity
	for i := 0; i < 25; i++ {
		opps = append(opps, opp(fmt.Sprintf("E%02d", i), "h2h", "home", 2.0, f64(float64(25-i)/100)))
	}
	tail := opps[24]

	first := Reconcile(History{}, opps, "edge", "desc")
	require.Len(t, first.Ordered, DisplayLimit)
	assert.NotContains(t, first.Ordered, tail)
	assert.Len(t, first.History, 25)
	assert.Equal(t, 2.0, first.History[tail.Key()])

	// The hidden tail line moves up in price and edge and re-enters the top rows.
	opps[24].Price = 2.4
	opps[24].Edge = f64(0.99)
	second := Reconcile(first.History, opps, "edge", "desc")

	require.Equal(t, opps[24].Key(), second.Ordered[0].Key())
	assert.Equal(t, domain.FlashUp, second.Flashes[opps[24].Key()])
}

func TestReconcile_DefaultsToTwentyRows(t *testing.T) {
	var opps []domain.Opportunity
	for i := 0; i < 30; i++ {
		opps = append(opps, opp(fmt.Sprintf("E%d", i), "h2h", "away", 3.0, nil))
	}

	res := Reconcile(nil, opps, "", "")

	assert.Len(t, res.Ordered, 20)
	assert.Len(t, res.Flashes, 30)
}

func TestRank_StableOnTies(t *testing.T) {
	opps := []domain.Opportunity{
		opp("A", "h2h", "home", 2.0, f64(0.03)),
		opp("B", "h2h", "home", 2.0, f64(0.05)),
		opp("C", "h2h", "home", 2.0, f64(0.03)),
		opp("D", "h2h", "home", 2.0, f64(0.03)),
	}

	got := Rank(opps, "edge", "desc", 0)

	assert.Equal(t, []string{"B", "A", "C", "D"}, eventIDs(got))

	asc := Rank(opps, "edge", "asc", 0)
	assert.Equal(t, []string{"A", "C", "D", "B"}, eventIDs(asc))
}

func TestRank_NullsLastBothDirections(t *testing.T) {
	opps := []domain.Opportunity{
		opp("nil1", "h2h", "home", 2.0, nil),
		opp("low", "h2h", "home", 2.0, f64(0.01)),
		opp("nil2", "h2h", "home", 2.0, nil),
		opp("high", "h2h", "home", 2.0, f64(0.09)),
	}

	assert.Equal(t, []string{"high", "low", "nil1", "nil2"}, eventIDs(Rank(opps, "edge", "desc", 0)))
	assert.Equal(t, []string{"low", "high", "nil1", "nil2"}, eventIDs(Rank(opps, "edge", "asc", 0)))
}

func TestRank_StringsCaseInsensitive(t *testing.T) {
	mk := func(id, home string) domain.Opportunity {
		o := opp(id, "h2h", "home", 2.0, nil)
		o.Home = home
		return o
	}
	opps := []domain.Opportunity{mk("1", "charlton"), mk("2", "Arsenal"), mk("3", "brentford")}

	assert.Equal(t, []string{"2", "3", "1"}, eventIDs(Rank(opps, "home", "asc", 0)))
	assert.Equal(t, []string{"1", "3", "2"}, eventIDs(Rank(opps, "HOME", "DESC", 0)))
}

func TestRank_StartTime(t *testing.T) {
	base := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	mk := func(id string, offset time.Duration, set bool) domain.Opportunity {
		o := opp(id, "h2h", "home", 2.0, nil)
		if set {
			ts := base.Add(offset)
			o.StartTime = &ts
		}
		return o
	}
	opps := []domain.Opportunity{mk("late", 2*time.Hour, true), mk("none", 0, false), mk("early", 0, true)}

	assert.Equal(t, []string{"early", "late", "none"}, eventIDs(Rank(opps, "start_time", "asc", 0)))
}

func TestNormalizeSort(t *testing.T) {
	col, dir := NormalizeSort("bogus", "sideways")
	assert.Equal(t, ColEdge, col)
	assert.Equal(t, DirDesc, dir)

	col, dir = NormalizeSort(" Price ", "ASC")
	assert.Equal(t, ColPrice, col)
	assert.Equal(t, DirAsc, dir)
}

func eventIDs(opps []domain.Opportunity) []string {
	out := make([]string, 0, len(opps))
	for _, o := range opps {
		out = append(out, o.EventID)
	}
	return out
}
