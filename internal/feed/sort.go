package feed

import (
	"cmp"
	"math"
	"strings"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// Sortable columns. Anything else ranks by edge.
const (
	ColEdge               = "edge"
	ColStartTime          = "start_time"
	ColPrice              = "price"
	ColImpliedProbability = "implied_probability"
	ColTrueOdds           = "true_odds"
	ColHome               = "home"
	ColAway               = "away"
	ColLeague             = "league"
	ColSport              = "sport"
	ColBookmaker          = "bookmaker"
	ColMarket             = "market"
	ColSelection          = "selection"

	DirAsc  = "asc"
	DirDesc = "desc"
)

var knownColumns = map[string]bool{
	ColEdge: true, ColStartTime: true, ColPrice: true, ColImpliedProbability: true,
	ColTrueOdds: true, ColHome: true, ColAway: true, ColLeague: true, ColSport: true,
	ColBookmaker: true, ColMarket: true, ColSelection: true,
}

// NormalizeSort maps operator input onto a known column and direction.
// The default is edge, descending.
func NormalizeSort(col, dir string) (string, string) {
	col = strings.ToLower(strings.TrimSpace(col))
	if !knownColumns[col] {
		col = ColEdge
	}
	dir = strings.ToLower(strings.TrimSpace(dir))
	if dir != DirAsc {
		dir = DirDesc
	}
	return col, dir
}

// sortKey is the comparable projection of one column of an opportunity.
type sortKey struct {
	num   float64
	str   string
	isStr bool
	null  bool
}

func numKey(v *float64) sortKey {
	if v == nil || math.IsNaN(*v) {
		return sortKey{null: true}
	}
	return sortKey{num: *v}
}

func strKey(s string) sortKey {
	return sortKey{str: strings.ToLower(s), isStr: true}
}

func keyFor(o domain.Opportunity, col string) sortKey {
	switch col {
	case ColStartTime:
		if o.StartTime == nil || o.StartTime.IsZero() {
			return sortKey{null: true}
		}
		return sortKey{num: float64(o.StartTime.UnixMilli())}
	case ColPrice:
		p := o.Price
		return numKey(&p)
	case ColImpliedProbability:
		return numKey(o.ImpliedProbability)
	case ColTrueOdds:
		return numKey(o.TrueOdds)
	case ColHome:
		return strKey(o.Home)
	case ColAway:
		return strKey(o.Away)
	case ColLeague:
		return strKey(o.League)
	case ColSport:
		return strKey(o.Sport)
	case ColBookmaker:
		return strKey(o.Bookmaker)
	case ColMarket:
		return strKey(o.Market)
	case ColSelection:
		return strKey(o.Selection)
	default:
		return numKey(o.Edge)
	}
}

// Compare orders two opportunities on col. Nulls go last in either
// direction; desc flips only the non-null comparison.
func Compare(a, b domain.Opportunity, col string, desc bool) int {
	ka, kb := keyFor(a, col), keyFor(b, col)
	switch {
	case ka.null && kb.null:
		return 0
	case ka.null:
		return 1
	case kb.null:
		return -1
	}

	var c int
	if ka.isStr {
		c = strings.Compare(ka.str, kb.str)
	} else {
		c = cmp.Compare(ka.num, kb.num)
	}
	if desc {
		c = -c
	}
	return c
}
