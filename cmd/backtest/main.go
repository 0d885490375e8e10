// Command backtest runs a single simulation over a bar CSV and a signal CSV
// and prints the resulting trade log and performance metrics.
//
// Usage:
//
//	backtest -bars bars.csv -signals signals.csv -symbol AAPL
//	backtest -bars bars.csv -signals signals.csv -symbol AAPL \
//	    -sizing STAGED -stages 0.25,0.25,0.25,0.25 -json
//	backtest -bars bars.csv -signals signals.csv -symbol AAPL \
//	    -persist -postgres-dsn $POSTGRES_DSN
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/marketdata"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/storage/memory"
	pgstore "backtest-lab/internal/storage/postgres"
)

func main() {
	// Data inputs
	barsPath := flag.String("bars", "", "Path to OHLCV bar CSV (required)")
	signalsPath := flag.String("signals", "", "Path to signal CSV (required)")
	symbol := flag.String("symbol", "", "Instrument symbol (required)")

	// Simulation config
	initialCapital := flag.Float64("initial-capital", 100_000, "Starting cash")
	commissionPct := flag.Float64("commission-pct", 0.15, "Commission per side, percent")
	slippagePct := flag.Float64("slippage-pct", 0.1, "Slippage per side, percent")
	maxPositionRatio := flag.Float64("max-position-ratio", 1.0, "Max position value as fraction of equity")
	riskFreeRate := flag.Float64("risk-free-rate", 0.02, "Annual risk-free rate for Sharpe")
	startDate := flag.String("start", "", "Clip bars before this date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "Clip bars after this date (YYYY-MM-DD)")

	// Sizing
	sizingPolicy := flag.String("sizing", domain.SizingPolicyFixed, "Sizing policy: FIXED, DYNAMIC, or STAGED")
	fraction := flag.Float64("fraction", 1.0, "FIXED: fraction of cash per buy")
	maxFraction := flag.Float64("max-fraction", 1.0, "DYNAMIC: upper clip for strength-scaled fraction")
	stages := flag.String("stages", "", "STAGED: comma-separated stage fractions, e.g. 0.25,0.25,0.5")

	// Storage
	persistResult := flag.Bool("persist", false, "Persist the run result")
	useMemory := flag.Bool("use-memory", true, "Use in-memory stores instead of databases")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for run results")

	// Output
	outputJSON := flag.Bool("json", false, "Output full result as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *barsPath == "" || *signalsPath == "" || *symbol == "" {
		logger.Fatal("-bars, -signals and -symbol are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("Shutting down...")
		cancel()
	}()

	cfg, err := buildConfig(
		*initialCapital, *commissionPct, *slippagePct, *maxPositionRatio, *riskFreeRate,
		*startDate, *endDate,
		*sizingPolicy, *fraction, *maxFraction, *stages,
	)
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	bars, err := marketdata.LoadBarsCSV(*barsPath, *symbol)
	if err != nil {
		logger.Fatalf("load bars: %v", err)
	}
	signals, err := marketdata.LoadSignalsCSV(*signalsPath)
	if err != nil {
		logger.Fatalf("load signals: %v", err)
	}

	var resultStore storage.RunResultStore
	if *persistResult {
		if *useMemory {
			resultStore = memory.NewRunResultStore()
		} else {
			if *postgresDSN == "" {
				logger.Fatal("-postgres-dsn (or POSTGRES_DSN) is required with -persist unless -use-memory")
			}
			pool, err := pgstore.NewPool(ctx, *postgresDSN)
			if err != nil {
				logger.Fatalf("connect to postgres: %v", err)
			}
			defer pool.Close()
			resultStore = pgstore.NewRunResultStore(pool)
		}
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		ResultStore: resultStore,
		Cache:       memory.NewResultCache(),
		Logger:      logger,
	})

	logger.Printf("Running backtest: symbol=%s bars=%d signals=%d sizing=%s",
		*symbol, len(bars), len(signals), cfg.Sizing.Policy)

	result, err := runner.Run(ctx, &simulation.Input{
		Symbol:  *symbol,
		Bars:    bars,
		Signals: signals,
		Config:  cfg,
	})
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		printRunResult(result)
	}
}

// buildConfig assembles a SimulationConfig from CLI flags. Percent-shaped
// cost flags are converted to fractions before validation.
func buildConfig(
	initialCapital, commissionPct, slippagePct, maxPositionRatio, riskFreeRate float64,
	startDate, endDate string,
	sizingPolicy string, fraction, maxFraction float64, stages string,
) (domain.SimulationConfig, error) {
	cfg := domain.SimulationConfig{
		InitialCapital:   initialCapital,
		CommissionRate:   domain.PercentToRate(commissionPct),
		SlippageRate:     domain.PercentToRate(slippagePct),
		MaxPositionRatio: maxPositionRatio,
		RiskFreeRate:     riskFreeRate,
	}

	switch strings.ToUpper(sizingPolicy) {
	case domain.SizingPolicyFixed:
		cfg.Sizing = domain.SizingConfig{Policy: domain.SizingPolicyFixed, Fraction: &fraction}
	case domain.SizingPolicyDynamic:
		cfg.Sizing = domain.SizingConfig{Policy: domain.SizingPolicyDynamic, MaxFraction: &maxFraction}
	case domain.SizingPolicyStaged:
		parsed, err := parseStages(stages)
		if err != nil {
			return cfg, err
		}
		cfg.Sizing = domain.SizingConfig{Policy: domain.SizingPolicyStaged, Stages: parsed}
	default:
		return cfg, fmt.Errorf("unknown sizing policy %q: must be FIXED, DYNAMIC, or STAGED", sizingPolicy)
	}

	if startDate != "" {
		t, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return cfg, fmt.Errorf("parse -start: %w", err)
		}
		cfg.StartDate = &t
	}
	if endDate != "" {
		t, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return cfg, fmt.Errorf("parse -end: %w", err)
		}
		cfg.EndDate = &t
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseStages parses a comma-separated stage fraction list.
func parseStages(s string) ([]float64, error) {
	if s == "" {
		return nil, fmt.Errorf("-stages is required for STAGED sizing")
	}
	parts := strings.Split(s, ",")
	stages := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse stage %q: %w", p, err)
		}
		stages = append(stages, v)
	}
	return stages, nil
}

// printRunResult outputs a human-readable run summary.
func printRunResult(r *domain.RunResult) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", r.RunID)
	fmt.Printf("Symbol:             %s\n", r.Symbol)
	fmt.Printf("Sizing:             %s\n", r.SizingID)
	fmt.Printf("Bars:               %d\n", r.BarCount)
	fmt.Printf("Final State:        %s\n", r.FinalState)
	fmt.Println()

	fmt.Println("Performance:")
	fmt.Printf("  Final Equity:     %.2f\n", r.FinalEquity())
	fmt.Printf("  Total Return:     %.2f%%\n", r.Metrics.TotalReturn*100)
	fmt.Printf("  Annual Return:    %.2f%%\n", r.Metrics.AnnualReturn*100)
	fmt.Printf("  Max Drawdown:     %.2f%%\n", r.Metrics.MaxDrawdown*100)
	fmt.Printf("  Sharpe Ratio:     %.4f\n", r.Metrics.SharpeRatio)
	fmt.Printf("  Win Rate:         %.2f%%\n", r.Metrics.WinRate*100)
	fmt.Printf("  Profit Factor:    %.4f\n", r.Metrics.ProfitFactor)
	fmt.Println()

	fmt.Printf("Trades (%d):\n", len(r.Trades))
	for _, t := range r.Trades {
		line := fmt.Sprintf("  %s  %-4s %6d @ %.4f  commission=%.2f  cash=%.2f",
			t.Date.Format("2006-01-02"), t.Action, t.Shares, t.ExecutionPrice, t.Commission, t.CashAfter)
		if t.Action == domain.ActionSell {
			line += fmt.Sprintf("  pnl=%.2f (%.2f%%) held=%dd", t.RealizedProfit, t.RealizedProfitPct*100, t.HoldingDays)
		}
		fmt.Println(line)
	}

	if len(r.Skipped) > 0 {
		fmt.Println()
		fmt.Printf("Skipped signals (%d):\n", len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Printf("  %s  %-4s %-18s %s\n", s.Date.Format("2006-01-02"), s.Signal, s.Reason, s.Detail)
		}
	}
}
