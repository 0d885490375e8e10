// Package sizing implements the position-sizing policies of the engine.
// A policy answers one question: given a signal and the current portfolio
// snapshot, how much should be bought or sold. The base of every fraction is
// part of each policy's contract and is stated in its doc comment; it is
// never inferred from call order.
package sizing

import "backtest-lab/internal/domain"

// Snapshot is the portfolio state a policy sizes against. Price is the
// current bar's close, Equity is cash plus mark-to-market position value.
type Snapshot struct {
	Cash   float64
	Equity float64
	Held   int64
	Price  float64
}

// Policy decides position sizes for one simulation run. Implementations may
// carry per-run state (staged building); a Policy instance is owned by
// exactly one run and is never shared.
type Policy interface {
	// BuyAllocation returns the cash to commit to a buy signal.
	// Zero or negative means the buy is not actionable under this policy.
	BuyAllocation(row *domain.SignalRow, snap Snapshot) float64

	// SellFraction returns the fraction of current holdings to liquidate
	// for a sell signal. Values >= 1 mean full liquidation.
	SellFraction(row *domain.SignalRow, snap Snapshot) float64

	// NotifyFill informs the policy that the simulator executed a trade.
	// flat reports whether the position returned to zero shares.
	NotifyFill(action domain.Action, flat bool)

	// ID returns the policy identifier including parameters.
	ID() string
}
