package simulation

import (
	"backtest-lab/internal/domain"
	"backtest-lab/internal/finmath"
	"backtest-lab/internal/ledger"
)

// Tracker derives per-bar equity and running drawdown from ledger state.
// It owns the high-water mark for one run and emits one immutable
// EquityPoint per observed bar.
type Tracker struct {
	highWater float64
}

// NewTracker creates a Tracker seeded with the run's initial equity so the
// first bar can already carry a drawdown.
func NewTracker(initialEquity float64) *Tracker {
	return &Tracker{highWater: initialEquity}
}

// Observe marks the ledger to market at the bar's close and returns the
// equity point for this bar. Drawdown is the non-negative fraction below the
// running high-water mark, guarded against a zero mark.
func (t *Tracker) Observe(bar *domain.Bar, led *ledger.Ledger) *domain.EquityPoint {
	positionValue := led.PositionValue(bar.Close)
	equity := led.Cash + positionValue

	if equity > t.highWater {
		t.highWater = equity
	}

	drawdown := 0.0
	if t.highWater > 0 {
		drawdown = (t.highWater - equity) / t.highWater
		if drawdown < 0 {
			drawdown = 0
		}
	}

	return &domain.EquityPoint{
		Date:          bar.Date,
		Cash:          finmath.Sanitize(led.Cash),
		SharesHeld:    led.SharesHeld,
		PositionValue: finmath.Sanitize(positionValue),
		Equity:        finmath.Sanitize(equity),
		Drawdown:      finmath.Sanitize(drawdown),
		Open:          bar.Open,
		High:          bar.High,
		Low:           bar.Low,
		Close:         bar.Close,
		Volume:        bar.Volume,
	}
}

// HighWater returns the current high-water mark.
func (t *Tracker) HighWater() float64 {
	return t.highWater
}
