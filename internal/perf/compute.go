// Package perf derives summary statistics from a completed trade log and
// equity curve. All computations are pure: the inputs are read-only and the
// metrics block is recomputed wholesale, never incrementally mutated.
package perf

import (
	"math"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/finmath"
)

const tradingDaysPerYear = 252

// Compute calculates all performance metrics for a run. Degenerate inputs
// (no trades, zero-variance returns, zero elapsed days) resolve to sentinel
// values; every output field is finite.
func Compute(trades []*domain.Trade, curve []*domain.EquityPoint, cfg domain.SimulationConfig) domain.PerformanceMetrics {
	totalReturn := computeTotalReturn(curve, cfg.InitialCapital)
	annualReturn := computeAnnualReturn(totalReturn, curve)

	m := domain.PerformanceMetrics{
		TotalReturn:  totalReturn,
		AnnualReturn: annualReturn,
		MaxDrawdown:  computeMaxDrawdown(curve),
		SharpeRatio:  computeSharpe(annualReturn, cfg.RiskFreeRate, curve),
		WinRate:      computeWinRate(trades),
		ProfitFactor: computeProfitFactor(trades),
	}

	m.TotalReturn = finmath.Sanitize(m.TotalReturn)
	m.AnnualReturn = finmath.Sanitize(m.AnnualReturn)
	m.MaxDrawdown = finmath.Sanitize(m.MaxDrawdown)
	m.SharpeRatio = finmath.Sanitize(m.SharpeRatio)
	m.WinRate = finmath.Sanitize(m.WinRate)
	m.ProfitFactor = finmath.Sanitize(m.ProfitFactor)
	return m
}

// computeTotalReturn calculates equity_final / equity_initial - 1.
func computeTotalReturn(curve []*domain.EquityPoint, initialCapital float64) float64 {
	if len(curve) == 0 || initialCapital <= 0 {
		return 0
	}
	return curve[len(curve)-1].Equity/initialCapital - 1
}

// computeAnnualReturn annualizes the total return over the curve's calendar
// span: (1 + total)^(365 / elapsed_days) - 1. Undefined spans report 0.
func computeAnnualReturn(totalReturn float64, curve []*domain.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	elapsed := curve[len(curve)-1].Date.Sub(curve[0].Date).Hours() / 24
	if elapsed <= 0 {
		return 0
	}
	if totalReturn <= -1 {
		return -1
	}
	return math.Pow(1+totalReturn, 365/elapsed) - 1
}

// computeMaxDrawdown returns the largest drawdown magnitude on the curve.
func computeMaxDrawdown(curve []*domain.EquityPoint) float64 {
	maxDD := 0.0
	for _, p := range curve {
		if p.Drawdown > maxDD {
			maxDD = p.Drawdown
		}
	}
	return maxDD
}

// computeSharpe calculates (annual_return - risk_free) over the annualized
// daily-return volatility. Zero variance reports 0, not Inf.
func computeSharpe(annualReturn, riskFreeRate float64, curve []*domain.EquityPoint) float64 {
	returns := dailyReturns(curve)
	stddev := sampleStddev(returns)
	if stddev == 0 {
		return 0
	}
	return (annualReturn - riskFreeRate) / (stddev * math.Sqrt(tradingDaysPerYear))
}

// dailyReturns derives per-bar simple returns from successive equity values.
func dailyReturns(curve []*domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	return returns
}

// sampleStddev calculates sample standard deviation (n-1 denominator).
func sampleStddev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computeWinRate returns winning sells over total sells; 0 with no sells.
func computeWinRate(trades []*domain.Trade) float64 {
	sells, wins := 0, 0
	for _, t := range trades {
		if t.Action != domain.ActionSell {
			continue
		}
		sells++
		if t.RealizedProfit > 0 {
			wins++
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells)
}

// computeProfitFactor returns gross wins over gross losses. With no losing
// trades it reports a large finite sentinel when there are winners, else 0.
func computeProfitFactor(trades []*domain.Trade) float64 {
	grossWin, grossLoss := 0.0, 0.0
	for _, t := range trades {
		if t.Action != domain.ActionSell {
			continue
		}
		if t.RealizedProfit > 0 {
			grossWin += t.RealizedProfit
		} else {
			grossLoss += t.RealizedProfit
		}
	}
	if grossLoss == 0 {
		if grossWin > 0 {
			return finmath.MaxSentinel
		}
		return 0
	}
	return finmath.Sanitize(grossWin / math.Abs(grossLoss))
}
