package simulation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"backtest-lab/internal/domain"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Helper to create flat OHLCV bars, one per day, at the given closes.
func makeBars(symbol string, closes []float64) []*domain.Bar {
	bars := make([]*domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = &domain.Bar{
			Symbol: symbol,
			Date:   testEpoch.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

// Helper to create signal rows at bar indexes. Unlisted bars are holds.
func makeSignals(at map[int]domain.Signal) []*domain.SignalRow {
	rows := make([]*domain.SignalRow, 0, len(at))
	for i, s := range at {
		rows = append(rows, &domain.SignalRow{
			Date:   testEpoch.AddDate(0, 0, i),
			Signal: s,
		})
	}
	return rows
}

func fixedConfig(commission, slippage float64) domain.SimulationConfig {
	cfg := domain.DefaultSimulationConfig()
	cfg.InitialCapital = 10_000
	cfg.CommissionRate = commission
	cfg.SlippageRate = slippage
	return cfg
}

func constantSlice(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSimulate_AllHoldConstantPrice(t *testing.T) {
	ctx := context.Background()
	bars := makeBars("TEST", constantSlice(100, 100.0))

	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: nil,
		Config:  fixedConfig(0.001, 0.001),
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if len(result.Trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(result.Trades))
	}
	if len(result.EquityCurve) != 100 {
		t.Fatalf("expected 100 equity points, got %d", len(result.EquityCurve))
	}
	if result.Metrics.TotalReturn != 0 {
		t.Errorf("expected total return 0, got %f", result.Metrics.TotalReturn)
	}
	if result.Metrics.MaxDrawdown != 0 {
		t.Errorf("expected max drawdown 0, got %f", result.Metrics.MaxDrawdown)
	}
	if result.FinalState != domain.PositionFlat {
		t.Errorf("expected FLAT final state, got %s", result.FinalState)
	}
	for i, p := range result.EquityCurve {
		if p.Equity != 10_000 {
			t.Fatalf("point %d: expected constant equity 10000, got %f", i, p.Equity)
		}
	}
}

func TestSimulate_BuyExecution(t *testing.T) {
	ctx := context.Background()
	bars := makeBars("TEST", constantSlice(30, 100.0))
	signals := makeSignals(map[int]domain.Signal{10: domain.SignalBuy})

	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  fixedConfig(0.001, 0.0),
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.Action != domain.ActionBuy {
		t.Fatalf("expected BUY, got %s", trade.Action)
	}
	if trade.ExecutionPrice != 100.0 {
		t.Errorf("expected execution price 100.0 with zero slippage, got %f", trade.ExecutionPrice)
	}
	// floor(10000 / (100 * 1.001)) = 99
	if trade.Shares != 99 {
		t.Errorf("expected 99 shares, got %d", trade.Shares)
	}
	wantCash := 10_000 - 99*100*1.001
	if math.Abs(trade.CashAfter-wantCash) > 1e-9 {
		t.Errorf("expected cash after %.4f, got %.4f", wantCash, trade.CashAfter)
	}
	if result.FinalState == domain.PositionFlat {
		t.Errorf("expected open position at end of run")
	}
}

func TestSimulate_RoundTripProfit(t *testing.T) {
	ctx := context.Background()
	closes := constantSlice(30, 100.0)
	for i := 15; i < 30; i++ {
		closes[i] = 120.0
	}
	bars := makeBars("TEST", closes)
	signals := makeSignals(map[int]domain.Signal{
		10: domain.SignalBuy,
		20: domain.SignalSell,
	})

	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  fixedConfig(0.001, 0.001),
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if len(result.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(result.Trades))
	}
	sell := result.Trades[1]
	if sell.Action != domain.ActionSell {
		t.Fatalf("expected second trade SELL, got %s", sell.Action)
	}
	if sell.Shares != result.Trades[0].Shares {
		t.Errorf("expected full liquidation of %d shares, sold %d", result.Trades[0].Shares, sell.Shares)
	}
	wantPrice := 120.0 * (1 - 0.001)
	if math.Abs(sell.ExecutionPrice-wantPrice) > 1e-9 {
		t.Errorf("expected sell price %.4f, got %.4f", wantPrice, sell.ExecutionPrice)
	}
	if sell.RealizedProfit <= 0 {
		t.Errorf("expected positive realized profit, got %f", sell.RealizedProfit)
	}
	if sell.HoldingDays != 10 {
		t.Errorf("expected 10 holding days, got %d", sell.HoldingDays)
	}
	if result.Metrics.WinRate != 1.0 {
		t.Errorf("expected win rate 1.0, got %f", result.Metrics.WinRate)
	}
	if result.FinalState != domain.PositionFlat {
		t.Errorf("expected FLAT after full liquidation, got %s", result.FinalState)
	}
}

func TestSimulate_StagedBuildAndCap(t *testing.T) {
	ctx := context.Background()
	bars := makeBars("TEST", constantSlice(20, 100.0))
	signals := makeSignals(map[int]domain.Signal{
		2:  domain.SignalBuy,
		4:  domain.SignalBuy,
		6:  domain.SignalBuy,
		8:  domain.SignalBuy,
		10: domain.SignalBuy, // exhausted: must be a no-op
	})

	cfg := fixedConfig(0.0, 0.0)
	cfg.Sizing = domain.SizingConfig{
		Policy: domain.SizingPolicyStaged,
		Stages: []float64{0.25, 0.25, 0.25, 0.25},
	}

	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if len(result.Trades) != 4 {
		t.Fatalf("expected 4 staged buys, got %d trades", len(result.Trades))
	}
	for i, trade := range result.Trades {
		if trade.Action != domain.ActionBuy {
			t.Fatalf("trade %d: expected BUY, got %s", i, trade.Action)
		}
		if trade.Shares != 25 {
			t.Errorf("trade %d: expected 25 shares per stage at price 100, got %d", i, trade.Shares)
		}
	}

	// Fifth buy is recorded as a skip, not a trade and not an error.
	if len(result.Skipped) != 1 {
		t.Fatalf("expected 1 skipped signal, got %d", len(result.Skipped))
	}
	skip := result.Skipped[0]
	if skip.Reason != domain.SkipZeroFraction && skip.Reason != domain.SkipMaxPosition {
		t.Errorf("unexpected skip reason %s", skip.Reason)
	}

	// Fully invested at constant price with no costs.
	last := result.EquityCurve[len(result.EquityCurve)-1]
	if last.SharesHeld != 100 {
		t.Errorf("expected 100 shares held, got %d", last.SharesHeld)
	}
	if math.Abs(last.Cash) > 1e-9 {
		t.Errorf("expected ~0 cash when fully invested, got %f", last.Cash)
	}
	if result.FinalState != domain.PositionFull {
		t.Errorf("expected FULL final state, got %s", result.FinalState)
	}
}

func TestSimulate_SellWithNoPositionIsSkipped(t *testing.T) {
	ctx := context.Background()
	bars := makeBars("TEST", constantSlice(10, 100.0))
	signals := makeSignals(map[int]domain.Signal{3: domain.SignalSell})

	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  fixedConfig(0.001, 0.001),
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(result.Trades))
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected 1 skipped signal, got %d", len(result.Skipped))
	}
	if result.Skipped[0].Reason != domain.SkipNoPosition {
		t.Errorf("expected NO_POSITION skip, got %s", result.Skipped[0].Reason)
	}
}

func TestSimulate_InsufficientCashIsSkipped(t *testing.T) {
	ctx := context.Background()
	bars := makeBars("TEST", constantSlice(10, 50_000.0))
	signals := makeSignals(map[int]domain.Signal{2: domain.SignalBuy})

	// One share costs far more than total capital.
	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  fixedConfig(0.001, 0.001),
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(result.Trades))
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != domain.SkipInsufficientCash {
		t.Fatalf("expected one INSUFFICIENT_CASH skip, got %+v", result.Skipped)
	}
}

func TestSimulate_RepeatedBuyAtMaxPositionIsSkipped(t *testing.T) {
	ctx := context.Background()
	bars := makeBars("TEST", constantSlice(10, 100.0))
	signals := makeSignals(map[int]domain.Signal{
		2: domain.SignalBuy,
		4: domain.SignalBuy,
	})

	cfg := fixedConfig(0.0, 0.0)
	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != domain.SkipMaxPosition {
		t.Fatalf("expected one MAX_POSITION skip, got %+v", result.Skipped)
	}
}

func TestSimulate_BuyClampedToMaxPositionHeadroom(t *testing.T) {
	ctx := context.Background()
	bars := makeBars("TEST", constantSlice(10, 100.0))
	signals := makeSignals(map[int]domain.Signal{
		2: domain.SignalBuy,
		4: domain.SignalBuy,
	})

	cfg := fixedConfig(0.0, 0.0)
	cfg.MaxPositionRatio = 0.5
	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	// Fraction 1.0 would spend all cash; the ratio must clamp the first
	// buy to half the equity instead of letting it overshoot.
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	if got := result.Trades[0].Shares; got != 50 {
		t.Fatalf("expected buy clamped to 50 shares, got %d", got)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != domain.SkipMaxPosition {
		t.Fatalf("expected one MAX_POSITION skip, got %+v", result.Skipped)
	}
}

func TestSimulate_EquityIdentityHoldsEveryBar(t *testing.T) {
	ctx := context.Background()
	closes := []float64{100, 102, 99, 104, 108, 103, 110, 95, 101, 107, 112, 109}
	bars := makeBars("TEST", closes)
	signals := makeSignals(map[int]domain.Signal{
		1: domain.SignalBuy,
		5: domain.SignalSell,
		7: domain.SignalBuy,
	})

	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  fixedConfig(0.0015, 0.001),
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	for i, p := range result.EquityCurve {
		want := p.Cash + float64(p.SharesHeld)*p.Close
		if math.Abs(p.Equity-want) > 1e-6 {
			t.Errorf("point %d: equity %.6f != cash+position %.6f", i, p.Equity, want)
		}
		if p.Cash < 0 {
			t.Errorf("point %d: negative cash %.6f", i, p.Cash)
		}
		if p.SharesHeld < 0 {
			t.Errorf("point %d: negative shares %d", i, p.SharesHeld)
		}
		if p.Drawdown < 0 || p.Drawdown > 1 {
			t.Errorf("point %d: drawdown %.6f out of [0,1]", i, p.Drawdown)
		}
	}
}

func TestSimulate_TradeCashAccountingIsExact(t *testing.T) {
	ctx := context.Background()
	closes := []float64{100, 105, 110, 108, 115, 112, 118, 120}
	bars := makeBars("TEST", closes)
	signals := makeSignals(map[int]domain.Signal{
		0: domain.SignalBuy,
		4: domain.SignalSell,
	})

	result, err := Simulate(ctx, &Input{
		Symbol:  "TEST",
		Bars:    bars,
		Signals: signals,
		Config:  fixedConfig(0.0015, 0.001),
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(result.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(result.Trades))
	}

	buy := result.Trades[0]
	if math.Abs(buy.CashBefore-(buy.GrossValue+buy.Commission)-buy.CashAfter) > 1e-9 {
		t.Errorf("buy cash identity broken: before=%.6f gross=%.6f comm=%.6f after=%.6f",
			buy.CashBefore, buy.GrossValue, buy.Commission, buy.CashAfter)
	}
	sell := result.Trades[1]
	if math.Abs(sell.CashBefore+(sell.GrossValue-sell.Commission)-sell.CashAfter) > 1e-9 {
		t.Errorf("sell cash identity broken: before=%.6f gross=%.6f comm=%.6f after=%.6f",
			sell.CashBefore, sell.GrossValue, sell.Commission, sell.CashAfter)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	ctx := context.Background()
	closes := []float64{100, 103, 101, 106, 104, 109, 111, 107, 113, 116}
	signals := makeSignals(map[int]domain.Signal{
		1: domain.SignalBuy,
		6: domain.SignalSell,
	})

	var first *domain.RunResult
	for run := 0; run < 5; run++ {
		result, err := Simulate(ctx, &Input{
			Symbol:  "TEST",
			Bars:    makeBars("TEST", closes),
			Signals: signals,
			Config:  fixedConfig(0.0015, 0.001),
		})
		if err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
		if first == nil {
			first = result
			continue
		}
		if len(result.Trades) != len(first.Trades) {
			t.Fatalf("run %d: trade count diverged", run)
		}
		for i := range result.Trades {
			if *result.Trades[i] != *first.Trades[i] {
				t.Errorf("run %d trade %d diverged: %+v vs %+v", run, i, result.Trades[i], first.Trades[i])
			}
		}
		if result.Metrics != first.Metrics {
			t.Errorf("run %d metrics diverged: %+v vs %+v", run, result.Metrics, first.Metrics)
		}
	}
}

func TestSimulate_StructuralFailures(t *testing.T) {
	ctx := context.Background()
	valid := makeBars("TEST", constantSlice(5, 100.0))

	t.Run("no bars", func(t *testing.T) {
		_, err := Simulate(ctx, &Input{Symbol: "TEST", Config: fixedConfig(0.001, 0.001)})
		if !errors.Is(err, domain.ErrNoBars) {
			t.Errorf("expected ErrNoBars, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := fixedConfig(0.001, 0.001)
		cfg.InitialCapital = 0
		_, err := Simulate(ctx, &Input{Symbol: "TEST", Bars: valid, Config: cfg})
		if !errors.Is(err, domain.ErrInvalidInitialCapital) {
			t.Errorf("expected ErrInvalidInitialCapital, got %v", err)
		}
	})

	t.Run("signal on unknown date", func(t *testing.T) {
		signals := []*domain.SignalRow{{
			Date:   testEpoch.AddDate(1, 0, 0),
			Signal: domain.SignalBuy,
		}}
		_, err := Simulate(ctx, &Input{Symbol: "TEST", Bars: valid, Signals: signals, Config: fixedConfig(0.001, 0.001)})
		if !errors.Is(err, domain.ErrSignalUnknownDate) {
			t.Errorf("expected ErrSignalUnknownDate, got %v", err)
		}
	})

	t.Run("out of order bars", func(t *testing.T) {
		bars := makeBars("TEST", constantSlice(5, 100.0))
		bars[1], bars[3] = bars[3], bars[1]
		_, err := Simulate(ctx, &Input{Symbol: "TEST", Bars: bars, Config: fixedConfig(0.001, 0.001)})
		if !errors.Is(err, domain.ErrBarOrder) {
			t.Errorf("expected ErrBarOrder, got %v", err)
		}
	})
}

func TestSimulate_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Simulate(ctx, &Input{
		Symbol: "TEST",
		Bars:   makeBars("TEST", constantSlice(10, 100.0)),
		Config: fixedConfig(0.001, 0.001),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSimulate_ProgressReported(t *testing.T) {
	var calls, lastDone, lastTotal int
	_, err := Simulate(context.Background(), &Input{
		Symbol: "TEST",
		Bars:   makeBars("TEST", constantSlice(25, 100.0)),
		Config: fixedConfig(0.001, 0.001),
		Progress: func(done, total int) {
			calls++
			lastDone, lastTotal = done, total
		},
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if calls != 25 || lastDone != 25 || lastTotal != 25 {
		t.Errorf("progress calls=%d last=%d/%d, want 25 calls ending 25/25", calls, lastDone, lastTotal)
	}
}

func TestSimulate_DateWindowClipping(t *testing.T) {
	ctx := context.Background()
	bars := makeBars("TEST", constantSlice(30, 100.0))
	cfg := fixedConfig(0.001, 0.001)
	start := testEpoch.AddDate(0, 0, 10)
	end := testEpoch.AddDate(0, 0, 19)
	cfg.StartDate = &start
	cfg.EndDate = &end

	result, err := Simulate(ctx, &Input{Symbol: "TEST", Bars: bars, Config: cfg})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if result.BarCount != 10 {
		t.Errorf("expected 10 bars inside the window, got %d", result.BarCount)
	}
	if len(result.EquityCurve) != 10 {
		t.Errorf("expected 10 equity points, got %d", len(result.EquityCurve))
	}
}
