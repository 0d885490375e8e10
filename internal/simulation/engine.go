// Package simulation executes trading signals against a bar series one bar
// at a time, maintaining the portfolio ledger, the trade log, and the equity
// curve. A single run is strictly sequential: bars are order-dependent
// accumulators and there is no valid parallelization within one run.
// Parallelism lives one layer up, across independent runs.
package simulation

import (
	"context"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/execution"
	"backtest-lab/internal/ledger"
	"backtest-lab/internal/perf"
	"backtest-lab/internal/sizing"
)

// ProgressFunc receives best-effort progress updates during a run.
type ProgressFunc func(completedBars, totalBars int)

// Input holds everything one simulation run consumes. Bars and Signals are
// read-only; the engine never mutates them.
type Input struct {
	Symbol   string
	Bars     []*domain.Bar
	Signals  []*domain.SignalRow
	Config   domain.SimulationConfig
	Progress ProgressFunc // optional
}

// Simulate runs one complete backtest. Structural violations (bad config,
// invalid bars, misaligned signals) fail immediately with an error and no
// partial result. Business conditions (insufficient cash, sell with no
// position) never fail the run: they are recorded as skipped signals.
//
// Cancellation is cooperative: the context is checked between bars, never
// mid-bar, so an executed trade is always paired with its equity point.
func Simulate(ctx context.Context, input *Input) (*domain.RunResult, error) {
	cfg := input.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := sizing.FromConfig(cfg.Sizing)
	if err != nil {
		return nil, err
	}

	bars := domain.ClipBars(input.Bars, cfg.StartDate, cfg.EndDate)
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}

	signals, err := domain.AlignSignals(bars, clipSignals(input.Signals, cfg.StartDate, cfg.EndDate))
	if err != nil {
		return nil, err
	}

	e := &engine{
		cfg:    cfg,
		policy: policy,
		led:    ledger.New(cfg.InitialCapital),
		track:  NewTracker(cfg.InitialCapital),
	}

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.step(bar, signals[i])
		if input.Progress != nil {
			input.Progress(i+1, len(bars))
		}
	}

	result := &domain.RunResult{
		Symbol:      input.Symbol,
		SizingID:    policy.ID(),
		Config:      cfg,
		BarCount:    len(bars),
		FinalState:  e.state(bars[len(bars)-1].Close),
		Trades:      e.trades,
		EquityCurve: e.curve,
		Skipped:     e.skipped,
		GeneratedAt: time.Now().UTC(),
	}
	result.Metrics = perf.Compute(e.trades, e.curve, cfg)
	return result, nil
}

// clipSignals drops signal rows outside the configured date window so they
// align against the clipped bar series rather than failing as unknown dates.
func clipSignals(signals []*domain.SignalRow, start, end *time.Time) []*domain.SignalRow {
	if start == nil && end == nil {
		return signals
	}
	out := make([]*domain.SignalRow, 0, len(signals))
	for _, row := range signals {
		if row == nil {
			continue
		}
		if start != nil && row.Date.Before(*start) {
			continue
		}
		if end != nil && row.Date.After(*end) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// engine is the per-run mutable state of the bar loop.
type engine struct {
	cfg    domain.SimulationConfig
	policy sizing.Policy
	led    *ledger.Ledger
	track  *Tracker

	trades  []*domain.Trade
	curve   []*domain.EquityPoint
	skipped []*domain.SkippedSignal
}

// step processes one bar: evaluate the aligned signal, maybe trade, then
// mark to market. An absent signal row is a hold.
func (e *engine) step(bar *domain.Bar, row *domain.SignalRow) {
	if row != nil {
		switch row.Signal {
		case domain.SignalBuy:
			e.tryBuy(bar, row)
		case domain.SignalSell:
			e.trySell(bar, row)
		}
	}
	e.curve = append(e.curve, e.track.Observe(bar, e.led))
}

// tryBuy executes a buy signal or records the reason it was skipped.
func (e *engine) tryBuy(bar *domain.Bar, row *domain.SignalRow) {
	snap := e.snapshot(bar.Close)

	// Fully positioned: additional buys are no-ops, not errors.
	if e.led.SharesHeld > 0 && snap.Equity > 0 &&
		e.led.PositionValue(bar.Close) >= e.cfg.MaxPositionRatio*snap.Equity {
		e.skip(bar.Date, row, domain.SkipMaxPosition, "position at configured maximum")
		return
	}

	alloc := e.policy.BuyAllocation(row, snap)
	if alloc <= 0 {
		e.skip(bar.Date, row, domain.SkipZeroFraction, "sizing policy allocated nothing")
		return
	}
	// The max-position ratio caps the allocation too, so a single large
	// order cannot jump past the configured maximum from below it.
	if snap.Equity > 0 {
		headroom := e.cfg.MaxPositionRatio*snap.Equity - e.led.PositionValue(bar.Close)
		if alloc > headroom {
			alloc = headroom
		}
		if alloc <= 0 {
			e.skip(bar.Date, row, domain.SkipMaxPosition, "position at configured maximum")
			return
		}
	}
	if alloc > e.led.Cash {
		alloc = e.led.Cash
	}

	price := execution.BuyPrice(bar.Close, e.cfg.SlippageRate)
	shares := execution.BuyShares(alloc, price, e.cfg.CommissionRate)
	if shares <= 0 {
		e.skip(bar.Date, row, domain.SkipInsufficientCash, "allocated cash cannot afford one share")
		return
	}

	gross, commission, total := execution.BuyCost(shares, price, e.cfg.CommissionRate)
	if total > e.led.Cash {
		e.skip(bar.Date, row, domain.SkipInsufficientCash, "cost exceeds available cash")
		return
	}

	cashBefore := e.led.Cash
	equityBefore := e.led.Equity(bar.Close)

	// Sizing guarantees cover this order; a failure here is a bug, and the
	// trade is dropped as skipped rather than corrupting the ledger.
	if err := e.led.ApplyBuy(bar.Date, shares, price, commission); err != nil {
		e.skip(bar.Date, row, domain.SkipInsufficientCash, err.Error())
		return
	}
	e.policy.NotifyFill(domain.ActionBuy, false)

	e.trades = append(e.trades, &domain.Trade{
		Date:           bar.Date,
		Action:         domain.ActionBuy,
		ExecutionPrice: price,
		Shares:         shares,
		Commission:     commission,
		GrossValue:     gross,
		CashBefore:     cashBefore,
		CashAfter:      e.led.Cash,
		EquityBefore:   equityBefore,
		EquityAfter:    e.led.Equity(bar.Close),
		TriggerReason:  row.TriggerReason,
	})
}

// trySell executes a sell signal or records the reason it was skipped.
func (e *engine) trySell(bar *domain.Bar, row *domain.SignalRow) {
	if e.led.Flat() {
		e.skip(bar.Date, row, domain.SkipNoPosition, "sell signal with no holding")
		return
	}

	snap := e.snapshot(bar.Close)
	fraction := e.policy.SellFraction(row, snap)
	shares := execution.SellShares(e.led.SharesHeld, fraction)
	if shares <= 0 {
		e.skip(bar.Date, row, domain.SkipZeroFraction, "sizing policy sold nothing")
		return
	}

	price := execution.SellPrice(bar.Close, e.cfg.SlippageRate)
	gross, commission, _ := execution.SellProceeds(shares, price, e.cfg.CommissionRate)

	cashBefore := e.led.Cash
	equityBefore := e.led.Equity(bar.Close)

	outcome, err := e.led.ApplySell(bar.Date, shares, price, commission)
	if err != nil {
		e.skip(bar.Date, row, domain.SkipNoPosition, err.Error())
		return
	}
	e.policy.NotifyFill(domain.ActionSell, e.led.Flat())

	e.trades = append(e.trades, &domain.Trade{
		Date:              bar.Date,
		Action:            domain.ActionSell,
		ExecutionPrice:    price,
		Shares:            shares,
		Commission:        commission,
		GrossValue:        gross,
		CashBefore:        cashBefore,
		CashAfter:         e.led.Cash,
		EquityBefore:      equityBefore,
		EquityAfter:       e.led.Equity(bar.Close),
		TriggerReason:     row.TriggerReason,
		EntryPrice:        outcome.EntryPrice,
		HoldingDays:       outcome.HoldingDays,
		RealizedProfit:    outcome.RealizedProfit,
		RealizedProfitPct: outcome.RealizedProfitPct,
	})
}

// snapshot captures the portfolio state the sizing policy sizes against.
func (e *engine) snapshot(closePrice float64) sizing.Snapshot {
	return sizing.Snapshot{
		Cash:   e.led.Cash,
		Equity: e.led.Equity(closePrice),
		Held:   e.led.SharesHeld,
		Price:  closePrice,
	}
}

// skip records a business no-op with its reason.
func (e *engine) skip(date time.Time, row *domain.SignalRow, reason domain.SkipReason, detail string) {
	e.skipped = append(e.skipped, &domain.SkippedSignal{
		Date:   date,
		Signal: row.Signal,
		Reason: reason,
		Detail: detail,
	})
}

// state derives the position state from current holdings and the configured
// maximum position ratio.
func (e *engine) state(closePrice float64) domain.PositionState {
	if e.led.Flat() {
		return domain.PositionFlat
	}
	equity := e.led.Equity(closePrice)
	if equity > 0 && e.led.PositionValue(closePrice) >= e.cfg.MaxPositionRatio*equity {
		return domain.PositionFull
	}
	return domain.PositionPartial
}
