package sizing

import (
	"fmt"

	"backtest-lab/internal/domain"
)

// DynamicPolicy scales the buy fraction with the signal-strength value
// carried on the row, clipped to MaxFraction. Bases: buys are a fraction of
// current cash; sells are a fraction of current holdings and liquidate fully
// unless the row suggests a partial size. Rows without a strength fall back
// to suggested_position_size, then to MaxFraction.
type DynamicPolicy struct {
	MaxFraction float64
}

// NewDynamicPolicy creates a DynamicPolicy.
func NewDynamicPolicy(maxFraction float64) *DynamicPolicy {
	return &DynamicPolicy{MaxFraction: maxFraction}
}

// ID returns the policy identifier including parameters.
func (p *DynamicPolicy) ID() string {
	return fmt.Sprintf("DYNAMIC_max%.0f", p.MaxFraction*100)
}

// BuyAllocation returns the strength-scaled fraction of current cash.
func (p *DynamicPolicy) BuyAllocation(row *domain.SignalRow, snap Snapshot) float64 {
	fraction := p.MaxFraction
	switch {
	case row.Strength != nil:
		s := *row.Strength
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		fraction = s * p.MaxFraction
	case row.SuggestedPositionSize != nil:
		fraction = *row.SuggestedPositionSize
		if fraction > p.MaxFraction {
			fraction = p.MaxFraction
		}
	}
	return fraction * snap.Cash
}

// SellFraction liquidates everything unless the row suggests a partial size.
func (p *DynamicPolicy) SellFraction(row *domain.SignalRow, _ Snapshot) float64 {
	if row.SuggestedPositionSize != nil {
		return *row.SuggestedPositionSize
	}
	return 1
}

// NotifyFill is a no-op: the dynamic policy is stateless.
func (p *DynamicPolicy) NotifyFill(_ domain.Action, _ bool) {}

// Ensure DynamicPolicy implements Policy
var _ Policy = (*DynamicPolicy)(nil)
