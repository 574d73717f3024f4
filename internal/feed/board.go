package feed

import (
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// Board owns the feed cache and price history of the active session. Feed
// messages and operator actions arrive on different goroutines, so every
// access is serialized.
type Board struct {
	mu        sync.Mutex
	limit     int
	presetID  int64
	sortBy    string
	sortOrder string
	cache     []domain.Opportunity
	history   History
	flashes   map[domain.DiffKey]domain.Flash
	updatedAt time.Time
	now       func() time.Time
}

// NewBoard creates an empty Board that displays up to limit rows.
func NewBoard(limit int) *Board {
	if limit <= 0 {
		limit = DisplayLimit
	}
	col, dir := NormalizeSort("", "")
	return &Board{
		limit:     limit,
		sortBy:    col,
		sortOrder: dir,
		history:   History{},
		now:       time.Now,
	}
}

// Reset discards the cache and history and switches to a new preset.
func (b *Board) Reset(presetID int64, sortBy, sortOrder string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presetID = presetID
	b.sortBy, b.sortOrder = NormalizeSort(sortBy, sortOrder)
	b.cache = nil
	b.history = History{}
	b.flashes = nil
	b.updatedAt = time.Time{}
}

// Apply replaces the cache with a full feed snapshot and returns the
// ranked view with flashes.
func (b *Board) Apply(opps []domain.Opportunity) domain.FeedSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := ReconcileLimit(b.history, opps, b.sortBy, b.sortOrder, b.limit)
	b.cache = slices.Clone(opps)
	b.history = res.History
	b.flashes = res.Flashes
	b.updatedAt = b.now().UTC()
	return b.snapshotLocked(res.Ordered)
}

// Mutate rewrites the cache in place (post-trade changes) and re-renders it.
// Flashes belong to the feed update that produced them and are cleared.
func (b *Board) Mutate(fn func([]domain.Opportunity) []domain.Opportunity) domain.FeedSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache = fn(slices.Clone(b.cache))
	b.flashes = nil
	b.updatedAt = b.now().UTC()
	return b.snapshotLocked(Rank(b.cache, b.sortBy, b.sortOrder, b.limit))
}

// Snapshot returns the current ranked view.
func (b *Board) Snapshot() domain.FeedSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked(Rank(b.cache, b.sortBy, b.sortOrder, b.limit))
}

// Find looks up a cached opportunity by diff key or upstream row id.
func (b *Board) Find(key string) (domain.Opportunity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.cache {
		if string(o.Key()) == key || (o.RowID != "" && o.RowID == key) {
			return o, true
		}
	}
	return domain.Opportunity{}, false
}

// PresetID returns the preset the board currently belongs to.
func (b *Board) PresetID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presetID
}

// Len returns the size of the full cache.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cache)
}

func (b *Board) snapshotLocked(ordered []domain.Opportunity) domain.FeedSnapshot {
	rows := make([]domain.FeedRow, 0, len(ordered))
	for _, o := range ordered {
		rows = append(rows, domain.FeedRow{Opportunity: o, Flash: b.flashes[o.Key()]})
	}
	return domain.FeedSnapshot{
		PresetID:  b.presetID,
		Rows:      rows,
		Total:     len(b.cache),
		SortBy:    b.sortBy,
		SortOrder: b.sortOrder,
		UpdatedAt: b.updatedAt,
	}
}
