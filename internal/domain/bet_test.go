package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBetSummary(t *testing.T) {
	sum := NewBetSummary(4, 100, 12.5, 2, 1)
	assert.Equal(t, int64(4), sum.TotalBets)
	assert.Equal(t, 100.0, sum.TotalStaked)
	assert.Equal(t, 12.5, sum.TotalProfit)
	assert.Equal(t, 12.5, sum.ROI)
	assert.Equal(t, 66.67, sum.WinRate)
}

func TestNewBetSummary_Empty(t *testing.T) {
	sum := NewBetSummary(0, 0, 0, 0, 0)
	assert.Zero(t, sum.ROI)
	assert.Zero(t, sum.WinRate)
}

func TestBetProfit(t *testing.T) {
	payout := 31.5
	tests := []struct {
		name string
		bet  Bet
		want float64
	}{
		{"won with payout", Bet{Status: BetStatusWon, Stake: 15, Price: 2.0, Payout: &payout}, 16.5},
		{"won without payout", Bet{Status: BetStatusWon, Stake: 10, Price: 2.5}, 15},
		{"lost", Bet{Status: BetStatusLost, Stake: 10, Price: 2.5}, -10},
		{"void", Bet{Status: BetStatusVoid, Stake: 10, Price: 2.5}, 0},
		{"open", Bet{Status: BetStatusOpen, Stake: 10, Price: 2.5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.bet.Profit(), 1e-9)
		})
	}
}
