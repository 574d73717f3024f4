package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

func TestStatsPoller_PollCachesAndPublishes(t *testing.T) {
	d, _ := newTestDashboard(nil)
	bets := newMemBets()
	bets.summary = domain.NewBetSummary(4, 40, 6, 2, 1)
	snaps := &memSnapshots{}
	hidden := &memHidden{purgeN: 3}
	fixtures := fakeFixtures{list: []domain.Fixture{{EventID: "E1", Home: "A", Away: "B"}}}

	p := NewStatsPoller(bets, fixtures, hidden, snaps, d, time.Minute, discard())
	p.Poll(context.Background())

	out := drain(d)
	require.Equal(t, []string{domain.ChannelStats}, channels(out))
	assert.Equal(t, 15.0, out[0].payload.(domain.BetSummary).ROI)

	sum, err := p.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.TotalBets)

	fx, err := p.Fixtures(context.Background())
	require.NoError(t, err)
	require.Len(t, fx, 1)
	assert.Equal(t, "E1", fx[0].EventID)
	assert.Equal(t, 1, hidden.purged)

	// The purge runs on its own, longer cadence.
	p.Poll(context.Background())
	assert.Equal(t, 1, hidden.purged)
}

func TestStatsPoller_FixturesFailureKeepsCache(t *testing.T) {
	d, _ := newTestDashboard(nil)
	snaps := &memSnapshots{}
	p := NewStatsPoller(newMemBets(), fakeFixtures{list: []domain.Fixture{{EventID: "E1"}}}, nil, snaps, d, time.Minute, discard())
	p.Poll(context.Background())

	p.fixtures = fakeFixtures{err: errors.New("timeout")}
	p.Poll(context.Background())

	fx, err := p.Fixtures(context.Background())
	require.NoError(t, err)
	assert.Len(t, fx, 1)
}

func TestStatsPoller_ColdCaches(t *testing.T) {
	d, _ := newTestDashboard(nil)
	bets := newMemBets()
	bets.summary = domain.BetSummary{TotalBets: 1}
	p := NewStatsPoller(bets, nil, nil, &memSnapshots{}, d, 0, discard())

	sum, err := p.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.TotalBets)

	fx, err := p.Fixtures(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, fx)
	assert.Empty(t, fx)
}

func TestStatsPoller_StatsError(t *testing.T) {
	d, _ := newTestDashboard(nil)
	bets := newMemBets()
	bets.err = errors.New("db down")
	p := NewStatsPoller(bets, nil, nil, nil, d, time.Minute, discard())

	p.Poll(context.Background())
	assert.Empty(t, drain(d))

	_, err := p.Stats(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestStatsPoller_RunStopsOnCancel(t *testing.T) {
	d, _ := newTestDashboard(nil)
	p := NewStatsPoller(newMemBets(), nil, nil, nil, d, 10*time.Millisecond, discard())

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))
	assert.GreaterOrEqual(t, len(drain(d)), 2)
}
