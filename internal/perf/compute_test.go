package perf

import (
	"math"
	"testing"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/finmath"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func flatCurve(n int, equity float64) []*domain.EquityPoint {
	curve := make([]*domain.EquityPoint, n)
	for i := range curve {
		curve[i] = &domain.EquityPoint{Date: day(i), Cash: equity, Equity: equity}
	}
	return curve
}

func sellTrade(profit float64) *domain.Trade {
	return &domain.Trade{Action: domain.ActionSell, RealizedProfit: profit}
}

func TestCompute_EmptyRun(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()
	m := Compute(nil, nil, cfg)

	if m.TotalReturn != 0 || m.AnnualReturn != 0 || m.MaxDrawdown != 0 ||
		m.SharpeRatio != 0 || m.WinRate != 0 || m.ProfitFactor != 0 {
		t.Errorf("empty run metrics not all zero: %+v", m)
	}
}

func TestCompute_FlatCurve(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()
	cfg.InitialCapital = 10000

	m := Compute(nil, flatCurve(100, 10000), cfg)
	if m.TotalReturn != 0 {
		t.Errorf("total return = %v, want 0", m.TotalReturn)
	}
	if m.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %v, want 0", m.MaxDrawdown)
	}
	// Zero-variance returns must not blow up the Sharpe ratio.
	if m.SharpeRatio != 0 {
		t.Errorf("sharpe = %v, want 0", m.SharpeRatio)
	}
}

func TestCompute_TotalAndAnnualReturn(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()
	cfg.InitialCapital = 10000

	// 10% gain over exactly one year.
	curve := []*domain.EquityPoint{
		{Date: day(0), Equity: 10000},
		{Date: day(365), Equity: 11000},
	}
	m := Compute(nil, curve, cfg)
	if math.Abs(m.TotalReturn-0.1) > 1e-9 {
		t.Errorf("total return = %v, want 0.1", m.TotalReturn)
	}
	if math.Abs(m.AnnualReturn-0.1) > 1e-6 {
		t.Errorf("annual return = %v, want ~0.1", m.AnnualReturn)
	}
}

func TestCompute_MaxDrawdown(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()
	curve := []*domain.EquityPoint{
		{Date: day(0), Equity: 10000, Drawdown: 0},
		{Date: day(1), Equity: 12000, Drawdown: 0},
		{Date: day(2), Equity: 9000, Drawdown: 0.25},
		{Date: day(3), Equity: 11000, Drawdown: 1.0 / 12},
	}
	m := Compute(nil, curve, cfg)
	if math.Abs(m.MaxDrawdown-0.25) > 1e-9 {
		t.Errorf("max drawdown = %v, want 0.25", m.MaxDrawdown)
	}
}

func TestCompute_WinRate(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()
	trades := []*domain.Trade{
		{Action: domain.ActionBuy},
		sellTrade(100),
		sellTrade(-50),
		sellTrade(30),
		sellTrade(0), // break-even counts as a loss
	}
	m := Compute(trades, flatCurve(2, 10000), cfg)
	if math.Abs(m.WinRate-0.5) > 1e-9 {
		t.Errorf("win rate = %v, want 0.5", m.WinRate)
	}
}

func TestCompute_ProfitFactor(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()

	trades := []*domain.Trade{sellTrade(100), sellTrade(-40)}
	m := Compute(trades, flatCurve(2, 10000), cfg)
	if math.Abs(m.ProfitFactor-2.5) > 1e-9 {
		t.Errorf("profit factor = %v, want 2.5", m.ProfitFactor)
	}

	// Only winners: a large finite sentinel, never Inf.
	m = Compute([]*domain.Trade{sellTrade(100)}, flatCurve(2, 10000), cfg)
	if m.ProfitFactor != finmath.MaxSentinel {
		t.Errorf("profit factor = %v, want sentinel %v", m.ProfitFactor, finmath.MaxSentinel)
	}

	// No sells at all.
	m = Compute(nil, flatCurve(2, 10000), cfg)
	if m.ProfitFactor != 0 {
		t.Errorf("profit factor = %v, want 0", m.ProfitFactor)
	}
}

func TestCompute_AllOutputsFinite(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()
	cfg.InitialCapital = 10000

	// Pathological curve: equity collapses to zero.
	curve := []*domain.EquityPoint{
		{Date: day(0), Equity: 10000},
		{Date: day(1), Equity: 0, Drawdown: 1},
	}
	m := Compute([]*domain.Trade{sellTrade(-10000)}, curve, cfg)

	for name, v := range map[string]float64{
		"total_return":  m.TotalReturn,
		"annual_return": m.AnnualReturn,
		"max_drawdown":  m.MaxDrawdown,
		"sharpe_ratio":  m.SharpeRatio,
		"win_rate":      m.WinRate,
		"profit_factor": m.ProfitFactor,
	} {
		if !finmath.IsFinite(v) {
			t.Errorf("%s is not finite: %v", name, v)
		}
	}
}

func TestSampleStddev(t *testing.T) {
	if got := sampleStddev([]float64{1}); got != 0 {
		t.Errorf("single sample stddev = %v, want 0", got)
	}
	got := sampleStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := 2.138089935299395 // sample formula, n-1 denominator
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("stddev = %v, want %v", got, want)
	}
}
