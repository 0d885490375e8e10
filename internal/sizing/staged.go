package sizing

import (
	"fmt"

	"backtest-lab/internal/domain"
)

// StagedPolicy builds a position across successive buy signals, consuming one
// configured fraction per executed buy, and unwinds it one stage per executed
// sell. Every stage fraction, buy and sell alike, is a fraction of total
// portfolio equity. With the same base on both sides, a build followed by a
// symmetric unwind returns the position to flat without residue.
// Suggested sizes on the signal row are ignored: the stage sequence is the
// policy. The stage cursor resets to zero whenever the position returns to
// flat.
type StagedPolicy struct {
	Stages []float64

	consumed int // stages consumed by executed buys
}

// NewStagedPolicy creates a StagedPolicy.
func NewStagedPolicy(stages []float64) *StagedPolicy {
	return &StagedPolicy{Stages: stages}
}

// ID returns the policy identifier including parameters.
func (p *StagedPolicy) ID() string {
	return fmt.Sprintf("STAGED_n%d", len(p.Stages))
}

// BuyAllocation returns the next stage's fraction of total equity, capped at
// available cash. Returns 0 when every stage is consumed.
func (p *StagedPolicy) BuyAllocation(_ *domain.SignalRow, snap Snapshot) float64 {
	if p.consumed >= len(p.Stages) {
		return 0
	}
	alloc := p.Stages[p.consumed] * snap.Equity
	if alloc > snap.Cash {
		alloc = snap.Cash
	}
	return alloc
}

// SellFraction unwinds the most recently consumed stage: the fraction of
// current holdings whose value equals that stage's share of equity.
func (p *StagedPolicy) SellFraction(_ *domain.SignalRow, snap Snapshot) float64 {
	if p.consumed == 0 {
		return 1
	}
	positionValue := float64(snap.Held) * snap.Price
	if positionValue <= 0 {
		return 1
	}
	stageValue := p.Stages[p.consumed-1] * snap.Equity
	fraction := stageValue / positionValue
	if fraction > 1 {
		fraction = 1
	}
	// Unwinding the last remaining stage liquidates fully so rounding can
	// never strand a residual share.
	if p.consumed == 1 {
		fraction = 1
	}
	return fraction
}

// NotifyFill advances the stage cursor on buys, retreats it on sells, and
// resets it when the position returns to flat.
func (p *StagedPolicy) NotifyFill(action domain.Action, flat bool) {
	switch action {
	case domain.ActionBuy:
		if p.consumed < len(p.Stages) {
			p.consumed++
		}
	case domain.ActionSell:
		if p.consumed > 0 {
			p.consumed--
		}
	}
	if flat {
		p.consumed = 0
	}
}

// Consumed returns the number of stages currently consumed.
func (p *StagedPolicy) Consumed() int {
	return p.consumed
}

// Ensure StagedPolicy implements Policy
var _ Policy = (*StagedPolicy)(nil)
