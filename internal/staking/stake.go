// Package staking sizes bets for an opportunity under a preset's staking
// configuration. Everything here is pure: no I/O, no logging. Conditions
// worth reporting are returned as diagnostics on the result.
package staking

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

const (
	// fallbackStake is used whenever a fixed stake is needed but the preset
	// has no usable default_stake.
	fallbackStake = 10.0

	defaultPercentRisk     = 1.0
	defaultKellyMultiplier = 1.0
)

// ComputeStake sizes a stake. probability and odds may be nil when unknown.
// It never fails and never returns NaN or a negative stake.
func ComputeStake(cfg domain.StakingConfig, bankroll float64, probability, odds *float64) domain.StakeResult {
	res := domain.StakeResult{
		Strategy: cfg.Strategy,
		Bankroll: bankroll,
	}

	p, hasP := known(probability)
	o, hasO := known(odds)

	var evPct float64
	if hasP && hasO {
		evPct = (p*o - 1) * 100
	}

	var stake, riskPct float64
	switch cfg.Strategy {
	case domain.StrategyFixed:
		stake = fixedStake(cfg)

	case domain.StrategyRisk:
		pr := defaultPercentRisk
		if v, ok := known(cfg.PercentRisk); ok {
			pr = v
		}
		stake = bankroll * pr / 100
		riskPct = pr

	case domain.StrategyKelly:
		if !hasP || !hasO {
			stake = fixedStake(cfg)
			res.Diagnostics = append(res.Diagnostics, domain.DiagKellyInputsMissing)
			break
		}
		mult := defaultKellyMultiplier
		if v, ok := known(cfg.KellyMultiplier); ok {
			mult = v
		}
		var valid bool
		stake, riskPct, valid = kelly(bankroll, p, o, mult)
		if !valid {
			res.Diagnostics = append(res.Diagnostics, domain.DiagInvalidOdds)
		}

	default:
		stake = fixedStake(cfg)
		res.Diagnostics = append(res.Diagnostics, domain.DiagUnknownStrategy)
	}

	if maxStake, ok := known(cfg.MaxStake); ok && stake > maxStake {
		stake = maxStake
	}
	// Also catches NaN from a NaN bankroll.
	if !(stake > 0) {
		stake = 0
	}

	var portPct float64
	if bankroll > 0 {
		portPct = stake / bankroll * 100
	}

	res.Stake = round2(stake)
	res.RiskPct = round2(riskPct)
	res.EVPct = round2(evPct)
	res.PortPct = round2(portPct)
	return res
}

// kelly returns the Kelly stake and the undamped fraction as a percentage.
// Odds at or below 1.0 pay nothing and are reported as invalid with a zero
// stake.
func kelly(bankroll, p, odds, mult float64) (stake, riskPct float64, valid bool) {
	if odds <= 1.0 {
		return 0, 0, false
	}
	b := odds - 1
	q := 1 - p
	f := (b*p - q) / b
	riskPct = f * 100

	scaled := f * mult
	switch {
	case scaled <= 0:
		stake = 0
	case scaled > 1:
		stake = bankroll
	default:
		stake = bankroll * scaled
	}
	return stake, riskPct, true
}

// fixedStake treats a zero or NaN default_stake as unset.
func fixedStake(cfg domain.StakingConfig) float64 {
	if cfg.DefaultStake == 0 || math.IsNaN(cfg.DefaultStake) {
		return fallbackStake
	}
	return cfg.DefaultStake
}

func known(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
