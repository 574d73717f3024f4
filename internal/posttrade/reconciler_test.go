package posttrade

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

type sliceFeed struct {
	cache []domain.Opportunity
}

func (f *sliceFeed) Mutate(fn func([]domain.Opportunity) []domain.Opportunity) domain.FeedSnapshot {
	f.cache = fn(f.cache)
	rows := make([]domain.FeedRow, 0, len(f.cache))
	for _, o := range f.cache {
		rows = append(rows, domain.FeedRow{Opportunity: o})
	}
	return domain.FeedSnapshot{Rows: rows, Total: len(f.cache)}
}

type fakePersister struct {
	mu    sync.Mutex
	err   error
	items []domain.HiddenItem
}

func (p *fakePersister) HideItem(_ context.Context, presetID int64, item domain.HiddenItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	item.PresetID = presetID
	p.items = append(p.items, item)
	return p.err
}

type fakeJournal struct {
	mu    sync.Mutex
	items []domain.HiddenItem
}

func (j *fakeJournal) Record(_ context.Context, item domain.HiddenItem) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.items = append(j.items, item)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconciler_PersistsHiddenItem(t *testing.T) {
	persister := &fakePersister{}
	journal := &fakeJournal{}
	r := NewReconciler(persister, journal, nil, discardLogger())
	feed := &sliceFeed{cache: sampleCache()}

	snap, item := r.Reconcile(context.Background(), feed, 7, domain.AfterTradeRemoveLine,
		TradeRef{EventID: "E1", Market: "h2h", Selection: "home"})
	r.Wait()

	assert.Equal(t, 2, snap.Total)
	require.NotNil(t, item)
	assert.Equal(t, int64(7), item.PresetID)

	require.Len(t, persister.items, 1)
	assert.Equal(t, int64(7), persister.items[0].PresetID)
	require.Len(t, journal.items, 1)
	assert.True(t, journal.items[0].Persisted)
}

func TestReconciler_FailureDoesNotRollBack(t *testing.T) {
	persister := &fakePersister{err: errors.New("backend down")}
	journal := &fakeJournal{}

	var failed []domain.HiddenItem
	var mu sync.Mutex
	onFailure := func(_ context.Context, item domain.HiddenItem, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, item)
	}

	r := NewReconciler(persister, journal, onFailure, discardLogger())
	feed := &sliceFeed{cache: sampleCache()}

	r.Reconcile(context.Background(), feed, 3, domain.AfterTradeRemoveMatch,
		TradeRef{EventID: "E1", Market: "h2h", Selection: "home"})
	r.Wait()

	assert.Len(t, feed.cache, 1, "local removal must stand after a failed hide")
	require.Len(t, journal.items, 1)
	assert.False(t, journal.items[0].Persisted)
	require.Len(t, failed, 1)
	assert.Equal(t, "E1", failed[0].EventID)
}

func TestReconciler_NoPresetSkipsPersistence(t *testing.T) {
	persister := &fakePersister{}
	r := NewReconciler(persister, nil, nil, discardLogger())
	feed := &sliceFeed{cache: sampleCache()}

	_, item := r.Reconcile(context.Background(), feed, 0, domain.AfterTradeRemoveTrade,
		TradeRef{EventID: "E1", Market: "h2h", Selection: "home"})
	r.Wait()

	require.NotNil(t, item)
	assert.Empty(t, persister.items)
	assert.Len(t, feed.cache, 3)
}

func TestReconciler_KeepNeverPersists(t *testing.T) {
	persister := &fakePersister{}
	r := NewReconciler(persister, nil, nil, discardLogger())
	feed := &sliceFeed{cache: sampleCache()}

	snap, item := r.Reconcile(context.Background(), feed, 5, domain.AfterTradeKeep,
		TradeRef{EventID: "E2", Market: "h2h", Selection: "home"})
	r.Wait()

	assert.Nil(t, item)
	assert.Empty(t, persister.items)
	assert.True(t, snap.Rows[4].HasBet)
}

func TestReconciler_HiddenTTLOverride(t *testing.T) {
	persister := &fakePersister{}
	r := NewReconciler(persister, nil, nil, discardLogger()).WithHiddenTTL(6 * time.Hour)
	r.now = func() time.Time { return now }
	feed := &sliceFeed{cache: sampleCache()}
	kickoff := now.Add(2 * time.Hour)

	_, item := r.Reconcile(context.Background(), feed, 3, domain.AfterTradeRemoveMatch,
		TradeRef{EventID: "E1", Market: "h2h", Selection: "home", StartTime: &kickoff})
	r.Wait()

	require.NotNil(t, item)
	assert.Equal(t, kickoff.Add(6*time.Hour).UTC(), item.ExpiryAt)
	require.Len(t, persister.items, 1)
	assert.Equal(t, item.ExpiryAt, persister.items[0].ExpiryAt)
}

type blockingPersister struct{}

func (blockingPersister) HideItem(ctx context.Context, _ int64, _ domain.HiddenItem) error {
	<-ctx.Done()
	return ctx.Err()
}

type ctxJournal struct {
	mu    sync.Mutex
	items []domain.HiddenItem
	errs  []error
}

func (j *ctxJournal) Record(ctx context.Context, item domain.HiddenItem) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := ctx.Err(); err != nil {
		j.errs = append(j.errs, err)
		return err
	}
	j.items = append(j.items, item)
	return nil
}

func TestReconciler_TimedOutHideIsStillJournaled(t *testing.T) {
	journal := &ctxJournal{}

	var hookErr, hookCtxErr error
	onFailure := func(ctx context.Context, _ domain.HiddenItem, err error) {
		hookErr = err
		hookCtxErr = ctx.Err()
	}

	r := NewReconciler(blockingPersister{}, journal, onFailure, discardLogger())
	r.timeout = 20 * time.Millisecond
	feed := &sliceFeed{cache: sampleCache()}

	r.Reconcile(context.Background(), feed, 4, domain.AfterTradeRemoveLine,
		TradeRef{EventID: "E1", Market: "h2h", Selection: "home"})
	r.Wait()

	assert.Empty(t, journal.errs)
	require.Len(t, journal.items, 1)
	assert.False(t, journal.items[0].Persisted)
	assert.Equal(t, int64(4), journal.items[0].PresetID)

	assert.ErrorIs(t, hookErr, context.DeadlineExceeded)
	assert.NoError(t, hookCtxErr)
}
