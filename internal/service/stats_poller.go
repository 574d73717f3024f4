package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

const (
	DefaultPollInterval  = 60 * time.Second
	DefaultPurgeInterval = 12 * time.Hour

	SnapshotStats    = "stats:summary"
	SnapshotFixtures = "fixtures:list"
)

// FixtureSource lists fixtures from the backend.
type FixtureSource interface {
	Fixtures(ctx context.Context) ([]domain.Fixture, error)
}

// StatsPoller refreshes the stats panel and the fixtures list on a fixed
// interval, caches both, and purges expired hidden items.
type StatsPoller struct {
	bets      domain.BetStore
	fixtures  FixtureSource
	hidden    domain.HiddenItemStore
	snapshots domain.SnapshotCache
	dashboard *Dashboard
	interval  time.Duration
	purgeEach time.Duration
	lastPurge time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewStatsPoller creates a StatsPoller. fixtures and hidden may be nil.
func NewStatsPoller(
	bets domain.BetStore,
	fixtures FixtureSource,
	hidden domain.HiddenItemStore,
	snapshots domain.SnapshotCache,
	dashboard *Dashboard,
	interval time.Duration,
	logger *slog.Logger,
) *StatsPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatsPoller{
		bets:      bets,
		fixtures:  fixtures,
		hidden:    hidden,
		snapshots: snapshots,
		dashboard: dashboard,
		interval:  interval,
		purgeEach: DefaultPurgeInterval,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "stats_poller")),
	}
}

// Run polls immediately and then on every tick until ctx is done.
func (p *StatsPoller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "stats poller started", slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "stats poller stopped")
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one refresh. Failures are logged and leave the previous cached
// values in place.
func (p *StatsPoller) Poll(ctx context.Context) {
	if sum, err := p.refreshStats(ctx); err != nil {
		p.logger.WarnContext(ctx, "stats refresh failed", slog.String("error", err.Error()))
	} else {
		p.dashboard.Publish(domain.ChannelStats, sum)
	}

	if p.fixtures != nil {
		if err := p.refreshFixtures(ctx); err != nil {
			p.logger.WarnContext(ctx, "fixtures refresh failed", slog.String("error", err.Error()))
		}
	}

	if p.hidden != nil && p.now().Sub(p.lastPurge) >= p.purgeEach {
		n, err := p.hidden.PurgeExpired(ctx, p.now().UTC())
		if err != nil {
			p.logger.WarnContext(ctx, "hidden item purge failed", slog.String("error", err.Error()))
		} else {
			p.lastPurge = p.now()
			if n > 0 {
				p.logger.InfoContext(ctx, "expired hidden items purged", slog.Int64("count", n))
			}
		}
	}
}

// Stats returns the cached summary, computing it when the cache is cold.
func (p *StatsPoller) Stats(ctx context.Context) (domain.BetSummary, error) {
	var sum domain.BetSummary
	if p.snapshots != nil {
		err := p.snapshots.Fetch(ctx, p.statsKey(), &sum)
		if err == nil {
			return sum, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			p.logger.WarnContext(ctx, "stats cache read failed", slog.String("error", err.Error()))
		}
	}
	return p.refreshStats(ctx)
}

// Fixtures returns the cached fixtures list. A cold cache yields an empty
// list.
func (p *StatsPoller) Fixtures(ctx context.Context) ([]domain.Fixture, error) {
	fixtures := []domain.Fixture{}
	if p.snapshots == nil {
		return fixtures, nil
	}
	if err := p.snapshots.Fetch(ctx, SnapshotFixtures, &fixtures); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.Fixture{}, nil
		}
		return nil, fmt.Errorf("service: fixtures: %w", err)
	}
	return fixtures, nil
}

func (p *StatsPoller) refreshStats(ctx context.Context) (domain.BetSummary, error) {
	presetID := p.presetID()
	sum, err := p.bets.Summary(ctx, presetID)
	if err != nil {
		return domain.BetSummary{}, fmt.Errorf("service: stats: %w", err)
	}
	if p.snapshots != nil {
		if err := p.snapshots.Put(ctx, p.statsKey(), sum, 2*p.interval); err != nil {
			p.logger.WarnContext(ctx, "stats cache write failed", slog.String("error", err.Error()))
		}
	}
	return sum, nil
}

func (p *StatsPoller) refreshFixtures(ctx context.Context) error {
	fixtures, err := p.fixtures.Fixtures(ctx)
	if err != nil {
		return err
	}
	if p.snapshots == nil {
		return nil
	}
	if err := p.snapshots.Put(ctx, SnapshotFixtures, fixtures, 2*p.interval); err != nil {
		return fmt.Errorf("service: cache fixtures: %w", err)
	}
	p.logger.DebugContext(ctx, "fixtures refreshed", slog.Int("count", len(fixtures)))
	return nil
}

// presetID scopes stats to the active preset; 0 covers every bet.
func (p *StatsPoller) presetID() int64 {
	if pr, ok := p.dashboard.Preset(); ok {
		return pr.ID
	}
	return 0
}

func (p *StatsPoller) statsKey() string {
	return fmt.Sprintf("%s:%d", SnapshotStats, p.presetID())
}
