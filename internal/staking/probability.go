package staking

import "github.com/alanyoungcy/oddsdesk/internal/domain"

// ResolveProbability picks the win probability used for sizing: the fair
// probability from true odds when known, then the feed's implied
// probability, then the bookmaker price itself. It returns nil when none is
// usable.
func ResolveProbability(o domain.Opportunity) *float64 {
	if v, ok := known(o.TrueOdds); ok && v > 0 {
		p := 1 / v
		return &p
	}
	if v, ok := known(o.ImpliedProbability); ok && v > 0 {
		return &v
	}
	if o.Price > 0 {
		p := 1 / o.Price
		return &p
	}
	return nil
}

// ResolveOdds returns the decimal price as an optional input.
func ResolveOdds(o domain.Opportunity) *float64 {
	if o.Price > 0 {
		v := o.Price
		return &v
	}
	return nil
}

// ForOpportunity sizes a stake for an opportunity with the resolved inputs.
func ForOpportunity(cfg domain.StakingConfig, bankroll float64, o domain.Opportunity) domain.StakeResult {
	return ComputeStake(cfg, bankroll, ResolveProbability(o), ResolveOdds(o))
}
