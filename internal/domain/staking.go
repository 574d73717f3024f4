package domain

// StakingStrategy selects how a stake is sized.
type StakingStrategy string

const (
	StrategyFixed StakingStrategy = "fixed"
	StrategyRisk  StakingStrategy = "risk"
	StrategyKelly StakingStrategy = "kelly"
)

// StakingConfig is the immutable staking section of a preset. Nil pointers
// mean the parameter was not configured.
type StakingConfig struct {
	Strategy        StakingStrategy `json:"strategy"`
	DefaultStake    float64         `json:"default_stake"`
	PercentRisk     *float64        `json:"percent_risk,omitempty"`
	KellyMultiplier *float64        `json:"kelly_multiplier,omitempty"`
	MaxStake        *float64        `json:"max_stake,omitempty"`
}

// StakeDiagnostic is a non-fatal condition recorded while sizing a stake.
type StakeDiagnostic string

const (
	DiagKellyInputsMissing StakeDiagnostic = "kelly_inputs_missing"
	DiagUnknownStrategy    StakeDiagnostic = "unknown_strategy"
	DiagInvalidOdds        StakeDiagnostic = "invalid_odds"
)

// StakeResult is the stake amount plus display metrics. All percentages and
// the stake are rounded to two decimals.
type StakeResult struct {
	Stake       float64           `json:"stake"`
	RiskPct     float64           `json:"risk_pct"`
	EVPct       float64           `json:"ev_pct"`
	PortPct     float64           `json:"port_pct"`
	Strategy    StakingStrategy   `json:"strategy"`
	Bankroll    float64           `json:"bankroll"`
	Diagnostics []StakeDiagnostic `json:"diagnostics,omitempty"`
}
