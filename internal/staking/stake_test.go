package staking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestComputeStake_KellyHalfMultiplier(t *testing.T) {
	cfg := domain.StakingConfig{
		Strategy:        domain.StrategyKelly,
		KellyMultiplier: f64(0.5),
	}

	res := ComputeStake(cfg, 1000, f64(0.55), f64(2.10))

	// b=1.10, f=(1.10*0.55-0.45)/1.10=0.1409, f'=0.0705
	assert.Equal(t, 14.09, res.RiskPct)
	assert.Equal(t, 70.45, res.Stake)
	assert.Equal(t, 7.05, res.PortPct)
	assert.Equal(t, 15.5, res.EVPct)
	assert.Equal(t, domain.StrategyKelly, res.Strategy)
	assert.Equal(t, 1000.0, res.Bankroll)
	assert.Empty(t, res.Diagnostics)
}

func TestComputeStake_KellyCappedByMaxStake(t *testing.T) {
	cfg := domain.StakingConfig{
		Strategy:        domain.StrategyKelly,
		KellyMultiplier: f64(0.5),
		MaxStake:        f64(50),
	}

	res := ComputeStake(cfg, 1000, f64(0.55), f64(2.10))

	assert.Equal(t, 50.0, res.Stake)
	assert.Equal(t, 5.0, res.PortPct)
	// risk_pct still reports the undamped fraction
	assert.Equal(t, 14.09, res.RiskPct)
}

func TestComputeStake_Fixed(t *testing.T) {
	tests := []struct {
		name    string
		def     float64
		want    float64
		wantPct float64
	}{
		{"zero default falls back", 0, 10, 1},
		{"nan default falls back", math.NaN(), 10, 1},
		{"configured default", 25, 25, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.StakingConfig{Strategy: domain.StrategyFixed, DefaultStake: tt.def}
			res := ComputeStake(cfg, 1000, nil, nil)
			assert.Equal(t, tt.want, res.Stake)
			assert.Equal(t, tt.wantPct, res.PortPct)
			assert.Equal(t, 0.0, res.RiskPct)
			assert.Equal(t, 0.0, res.EVPct)
		})
	}
}

func TestComputeStake_Risk(t *testing.T) {
	t.Run("missing percent_risk uses 1 percent", func(t *testing.T) {
		res := ComputeStake(domain.StakingConfig{Strategy: domain.StrategyRisk}, 1000, nil, nil)
		assert.Equal(t, 10.0, res.Stake)
		assert.Equal(t, 1.0, res.RiskPct)
		assert.Empty(t, res.Diagnostics)
	})

	t.Run("configured percent_risk", func(t *testing.T) {
		cfg := domain.StakingConfig{Strategy: domain.StrategyRisk, PercentRisk: f64(2.5)}
		res := ComputeStake(cfg, 1000, f64(0.5), f64(2.2))
		assert.Equal(t, 25.0, res.Stake)
		assert.Equal(t, 2.5, res.RiskPct)
		assert.Equal(t, 10.0, res.EVPct)
	})
}

func TestComputeStake_RiskIsProportionalToBankroll(t *testing.T) {
	for _, bankroll := range []float64{0, 1, 99.99, 1000, 12345.67} {
		for _, pr := range []float64{0, 0.5, 1, 7.25, 50, 100} {
			cfg := domain.StakingConfig{Strategy: domain.StrategyRisk, PercentRisk: f64(pr)}
			res := ComputeStake(cfg, bankroll, nil, nil)
			assert.InDelta(t, bankroll*pr/100, res.Stake, 0.005, "bankroll=%v pr=%v", bankroll, pr)
		}
	}
}

func TestComputeStake_KellyMissingInputsFallsBackToFixed(t *testing.T) {
	cfg := domain.StakingConfig{Strategy: domain.StrategyKelly, DefaultStake: 0}

	res := ComputeStake(cfg, 1000, nil, f64(2.0))

	assert.Equal(t, 10.0, res.Stake)
	assert.Equal(t, 0.0, res.EVPct)
	assert.Equal(t, []domain.StakeDiagnostic{domain.DiagKellyInputsMissing}, res.Diagnostics)
}

func TestComputeStake_KellyInvalidOdds(t *testing.T) {
	for _, odds := range []float64{1.0, 0.9, 0} {
		res := ComputeStake(domain.StakingConfig{Strategy: domain.StrategyKelly}, 1000, f64(0.6), f64(odds))
		assert.Equal(t, 0.0, res.Stake)
		assert.False(t, math.IsNaN(res.RiskPct))
		assert.False(t, math.IsNaN(res.PortPct))
		assert.Contains(t, res.Diagnostics, domain.DiagInvalidOdds)
	}
}

func TestComputeStake_KellyNegativeEdge(t *testing.T) {
	res := ComputeStake(domain.StakingConfig{Strategy: domain.StrategyKelly}, 1000, f64(0.4), f64(2.0))

	assert.Equal(t, 0.0, res.Stake)
	assert.Equal(t, -20.0, res.RiskPct)
	assert.Equal(t, 0.0, res.PortPct)
}

func TestComputeStake_KellyFractionAboveOneStakesBankroll(t *testing.T) {
	cfg := domain.StakingConfig{Strategy: domain.StrategyKelly, KellyMultiplier: f64(2)}

	res := ComputeStake(cfg, 500, f64(0.9), f64(10))

	assert.Equal(t, 500.0, res.Stake)
	assert.Equal(t, 100.0, res.PortPct)
}

func TestComputeStake_UnknownStrategy(t *testing.T) {
	cfg := domain.StakingConfig{Strategy: "martingale", DefaultStake: 15}

	res := ComputeStake(cfg, 1000, f64(0.5), f64(2.5))

	assert.Equal(t, 15.0, res.Stake)
	assert.Equal(t, []domain.StakeDiagnostic{domain.DiagUnknownStrategy}, res.Diagnostics)
	assert.Equal(t, domain.StakingStrategy("martingale"), res.Strategy)
}

func TestComputeStake_ZeroBankroll(t *testing.T) {
	cfg := domain.StakingConfig{Strategy: domain.StrategyFixed, DefaultStake: 20}

	res := ComputeStake(cfg, 0, nil, nil)

	assert.Equal(t, 20.0, res.Stake)
	assert.Equal(t, 0.0, res.PortPct)
}

func TestComputeStake_NegativeMaxStakeFloorsAtZero(t *testing.T) {
	cfg := domain.StakingConfig{Strategy: domain.StrategyFixed, DefaultStake: 20, MaxStake: f64(-5)}

	res := ComputeStake(cfg, 1000, nil, nil)

	assert.Equal(t, 0.0, res.Stake)
}

func TestComputeStake_KellyMonotonicInMultiplier(t *testing.T) {
	prev := -1.0
	for m := 1; m <= 40; m++ {
		cfg := domain.StakingConfig{Strategy: domain.StrategyKelly, KellyMultiplier: f64(float64(m) / 10)}
		res := ComputeStake(cfg, 1000, f64(0.55), f64(2.10))
		require.GreaterOrEqual(t, res.Stake, prev, "multiplier %.1f", float64(m)/10)
		require.LessOrEqual(t, res.Stake, 1000.0)
		prev = res.Stake
	}
	assert.Equal(t, 563.64, prev)
}

func TestComputeStake_CappingIsIdempotent(t *testing.T) {
	configs := []domain.StakingConfig{
		{Strategy: domain.StrategyKelly, KellyMultiplier: f64(0.5), MaxStake: f64(50)},
		{Strategy: domain.StrategyKelly, MaxStake: f64(500)},
		{Strategy: domain.StrategyRisk, PercentRisk: f64(5), MaxStake: f64(30)},
		{Strategy: domain.StrategyFixed, DefaultStake: 80, MaxStake: f64(60)},
	}
	for _, cfg := range configs {
		first := ComputeStake(cfg, 1000, f64(0.55), f64(2.10))
		// zero is the unset sentinel for fixed stakes
		if first.Stake == 0 {
			continue
		}
		again := ComputeStake(domain.StakingConfig{
			Strategy:     domain.StrategyFixed,
			DefaultStake: first.Stake,
			MaxStake:     cfg.MaxStake,
		}, 1000, f64(0.55), f64(2.10))
		assert.LessOrEqual(t, again.Stake, first.Stake, "strategy %s", cfg.Strategy)
	}
}

func TestResolveProbability(t *testing.T) {
	tests := []struct {
		name string
		opp  domain.Opportunity
		want *float64
	}{
		{"true odds win", domain.Opportunity{Price: 2.2, TrueOdds: f64(2.0), ImpliedProbability: f64(0.4)}, f64(0.5)},
		{"implied probability", domain.Opportunity{Price: 2.2, ImpliedProbability: f64(0.4)}, f64(0.4)},
		{"price fallback", domain.Opportunity{Price: 4}, f64(0.25)},
		{"zero true odds ignored", domain.Opportunity{Price: 4, TrueOdds: f64(0)}, f64(0.25)},
		{"nothing usable", domain.Opportunity{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveProbability(tt.opp)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestForOpportunity(t *testing.T) {
	opp := domain.Opportunity{Price: 2.10, TrueOdds: f64(1.0 / 0.55)}
	cfg := domain.StakingConfig{Strategy: domain.StrategyKelly, KellyMultiplier: f64(0.5)}

	res := ForOpportunity(cfg, 1000, opp)

	assert.Equal(t, 70.45, res.Stake)
}
