package sizing

import (
	"fmt"

	"backtest-lab/internal/domain"
)

// FixedPolicy commits the same fraction of current cash on every buy and
// fully liquidates on every sell. Bases: buys are a fraction of current cash
// (not total equity); sells are a fraction of current holdings. A
// suggested_position_size on the signal row overrides the configured
// fraction on both sides.
type FixedPolicy struct {
	Fraction float64
}

// NewFixedPolicy creates a FixedPolicy.
func NewFixedPolicy(fraction float64) *FixedPolicy {
	return &FixedPolicy{Fraction: fraction}
}

// ID returns the policy identifier including parameters.
func (p *FixedPolicy) ID() string {
	return fmt.Sprintf("FIXED_f%.0f", p.Fraction*100)
}

// BuyAllocation returns fraction * current cash.
func (p *FixedPolicy) BuyAllocation(row *domain.SignalRow, snap Snapshot) float64 {
	fraction := p.Fraction
	if row.SuggestedPositionSize != nil {
		fraction = *row.SuggestedPositionSize
	}
	return fraction * snap.Cash
}

// SellFraction liquidates everything unless the row suggests a partial size.
func (p *FixedPolicy) SellFraction(row *domain.SignalRow, _ Snapshot) float64 {
	if row.SuggestedPositionSize != nil {
		return *row.SuggestedPositionSize
	}
	return 1
}

// NotifyFill is a no-op: the fixed policy is stateless.
func (p *FixedPolicy) NotifyFill(_ domain.Action, _ bool) {}

// Ensure FixedPolicy implements Policy
var _ Policy = (*FixedPolicy)(nil)
