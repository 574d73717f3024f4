// Package feed ranks the live opportunity feed and tracks per-line price
// history so that price moves can be flashed on the dashboard.
package feed

import (
	"maps"
	"slices"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// DisplayLimit is the number of rows kept for display after ranking.
const DisplayLimit = 20

// History maps a diff key to the last price seen for it during a session.
type History map[domain.DiffKey]float64

// Result is the outcome of reconciling one feed message.
type Result struct {
	// Ordered is the ranked, truncated display list.
	Ordered []domain.Opportunity
	// Flashes has an entry for every incoming key.
	Flashes map[domain.DiffKey]domain.Flash
	// History is the updated price history built from the full set.
	History History
}

// Reconcile ranks opps with the default display limit.
func Reconcile(prev History, opps []domain.Opportunity, sortCol, sortDir string) Result {
	return ReconcileLimit(prev, opps, sortCol, sortDir, DisplayLimit)
}

// ReconcileLimit computes flashes against prev, ranks opps on sortCol and
// keeps the first limit rows. The history is updated from every incoming
// opportunity, not only the displayed ones, so a line re-entering the top
// rows still flashes correctly. prev is not modified. A limit <= 0 keeps
// every row.
func ReconcileLimit(prev History, opps []domain.Opportunity, sortCol, sortDir string, limit int) Result {
	next := make(History, len(prev)+len(opps))
	maps.Copy(next, prev)

	flashes := make(map[domain.DiffKey]domain.Flash, len(opps))
	for _, o := range opps {
		k := o.Key()
		flash := domain.FlashNone
		if old, ok := next[k]; ok && old != o.Price {
			if o.Price > old {
				flash = domain.FlashUp
			} else {
				flash = domain.FlashDown
			}
		}
		flashes[k] = flash
		next[k] = o.Price
	}

	return Result{
		Ordered: Rank(opps, sortCol, sortDir, limit),
		Flashes: flashes,
		History: next,
	}
}

// Rank returns a stably sorted copy of opps truncated to limit rows.
func Rank(opps []domain.Opportunity, sortCol, sortDir string, limit int) []domain.Opportunity {
	col, dir := NormalizeSort(sortCol, sortDir)
	desc := dir == DirDesc

	ordered := slices.Clone(opps)
	slices.SortStableFunc(ordered, func(a, b domain.Opportunity) int {
		return Compare(a, b, col, desc)
	})
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}
