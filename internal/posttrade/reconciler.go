package posttrade

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

const (
	// defaultPersistTimeout bounds the detached hide request.
	defaultPersistTimeout = 10 * time.Second
	// followupTimeout bounds the journal write and the failure hook, which
	// run after the hide request and must not inherit its expired deadline.
	followupTimeout = 5 * time.Second
)

// HidePersister records a suppression rule with the upstream backend.
type HidePersister interface {
	HideItem(ctx context.Context, presetID int64, item domain.HiddenItem) error
}

// HideJournal keeps a local record of every hide request and its outcome.
type HideJournal interface {
	Record(ctx context.Context, item domain.HiddenItem) error
}

// FeedCache is the live feed the reconciler rewrites.
type FeedCache interface {
	Mutate(fn func([]domain.Opportunity) []domain.Opportunity) domain.FeedSnapshot
}

// FailureFunc is called when a hide request fails. The local feed is not
// rolled back.
type FailureFunc func(ctx context.Context, item domain.HiddenItem, err error)

// Reconciler applies after-trade policies to the feed and persists hidden
// items as detached tasks.
type Reconciler struct {
	persister HidePersister
	journal   HideJournal
	onFailure FailureFunc
	timeout   time.Duration
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewReconciler creates a Reconciler. journal and onFailure may be nil.
func NewReconciler(persister HidePersister, journal HideJournal, onFailure FailureFunc, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		persister: persister,
		journal:   journal,
		onFailure: onFailure,
		timeout:   defaultPersistTimeout,
		ttl:       DefaultHiddenTTL,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "posttrade")),
	}
}

// WithHiddenTTL overrides how long after kick-off a hidden line stays
// suppressed. Non-positive values are ignored.
func (r *Reconciler) WithHiddenTTL(ttl time.Duration) *Reconciler {
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// Reconcile rewrites feed for a placed bet and returns the re-rendered
// snapshot plus the hidden item that was requested (nil if none). The hide
// request is only sent when presetID is known; it runs in the background and
// its failure never reverts the feed change.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	feed FeedCache,
	presetID int64,
	policy domain.AfterTradePolicy,
	ref TradeRef,
) (domain.FeedSnapshot, *domain.HiddenItem) {
	var out Outcome
	snap := feed.Mutate(func(cache []domain.Opportunity) []domain.Opportunity {
		out = Apply(policy, cache, ref, r.now(), r.ttl)
		return out.Cache
	})

	r.logger.DebugContext(ctx, "after-trade policy applied",
		slog.String("policy", string(policy)),
		slog.String("event_id", ref.EventID),
		slog.String("market", ref.Market),
		slog.Bool("changed", out.Changed),
	)

	if out.Hidden == nil {
		return snap, nil
	}
	item := *out.Hidden
	item.PresetID = presetID
	if presetID == 0 {
		r.logger.WarnContext(ctx, "no preset selected, hidden item not persisted",
			slog.String("event_id", item.EventID),
		)
		return snap, &item
	}

	r.persistAsync(item)
	return snap, &item
}

// Wait blocks until all in-flight hide requests have finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) persistAsync(item domain.HiddenItem) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.persister.HideItem(ctx, item.PresetID, item)
		cancel()

		item.Persisted = err == nil
		item.CreatedAt = r.now().UTC()

		fctx, fcancel := context.WithTimeout(context.Background(), followupTimeout)
		defer fcancel()

		if r.journal != nil {
			if jerr := r.journal.Record(fctx, item); jerr != nil {
				r.logger.WarnContext(fctx, "hidden item journal write failed",
					slog.String("event_id", item.EventID),
					slog.String("error", jerr.Error()),
				)
			}
		}

		if err != nil {
			r.logger.ErrorContext(fctx, "hidden item persistence failed",
				slog.Int64("preset_id", item.PresetID),
				slog.String("event_id", item.EventID),
				slog.String("error", err.Error()),
			)
			if r.onFailure != nil {
				r.onFailure(fctx, item, err)
			}
			return
		}
		r.logger.InfoContext(fctx, "hidden item persisted",
			slog.Int64("preset_id", item.PresetID),
			slog.String("event_id", item.EventID),
			slog.Time("expiry_at", item.ExpiryAt),
		)
	}()
}
