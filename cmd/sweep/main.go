// Command sweep runs a sizing-policy parameter sweep over one symbol's bars
// and signals, ranks the variants by Sharpe ratio, and writes Markdown and
// CSV reports.
//
// Usage:
//
//	sweep -bars bars.csv -signals signals.csv -symbol AAPL -output-dir docs
//	sweep -config sweep.yaml -bars bars.csv -signals signals.csv -symbol AAPL
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"backtest-lab/internal/config"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/jobs"
	"backtest-lab/internal/marketdata"
	"backtest-lab/internal/orchestrator"
	"backtest-lab/internal/reporting"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/storage/memory"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	barsPath := flag.String("bars", "", "Path to OHLCV bar CSV (required)")
	signalsPath := flag.String("signals", "", "Path to signal CSV (required)")
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated reports")
	fractions := flag.String("fractions", "0.25,0.5,0.75,1.0", "Comma-separated FIXED fractions to sweep")
	verbose := flag.Bool("verbose", false, "Verbose sweep progress logging")
	flag.Parse()

	logger := log.New(os.Stderr, "[sweep] ", log.LstdFlags)

	if *barsPath == "" || *signalsPath == "" || *symbol == "" {
		logger.Fatal("-bars, -signals and -symbol are required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
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

	bars, err := marketdata.LoadBarsCSV(*barsPath, *symbol)
	if err != nil {
		logger.Fatalf("load bars: %v", err)
	}
	signals, err := marketdata.LoadSignalsCSV(*signalsPath)
	if err != nil {
		logger.Fatalf("load signals: %v", err)
	}

	sizings, err := buildGrid(*fractions)
	if err != nil {
		logger.Fatalf("build sweep grid: %v", err)
	}

	resultStore := memory.NewRunResultStore()
	runner := simulation.NewRunner(simulation.RunnerOptions{
		ResultStore: resultStore,
		Cache:       memory.NewResultCache(),
		Logger:      logger,
	})
	scheduler := jobs.NewScheduler(jobs.SchedulerOptions{
		Runner:        runner,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Logger:        logger,
	})
	orch := orchestrator.New(orchestrator.Options{
		Scheduler: scheduler,
		Logger:    logger,
		Verbose:   *verbose,
	})

	logger.Printf("Running sweep: symbol=%s bars=%d variants=%d", *symbol, len(bars), len(sizings))

	sweepResult, err := orch.Run(ctx, &orchestrator.Sweep{
		Symbol:  *symbol,
		Bars:    bars,
		Signals: signals,
		Base:    cfg.Simulation,
		Sizings: sizings,
	})
	if err != nil {
		logger.Fatalf("sweep failed: %v", err)
	}
	for _, msg := range sweepResult.Errors {
		logger.Printf("variant error: %s", msg)
	}
	if len(sweepResult.Ranked) == 0 {
		logger.Fatal("no variant completed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		logger.Printf("scheduler shutdown: %v", err)
	}

	report := reporting.NewGenerator(resultStore).Build(sweepResult.Ranked)
	if err := writeReports(*outputDir, report); err != nil {
		logger.Fatalf("write reports: %v", err)
	}

	best := sweepResult.Ranked[0]
	logger.Printf("Sweep complete: best=%s sharpe=%.4f return=%.2f%% reports in %s",
		best.SizingID, best.Metrics.SharpeRatio, best.Metrics.TotalReturn*100, *outputDir)
}

// loadConfig reads the optional YAML file, falling back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildGrid expands the fraction list into FIXED sizing variants plus one
// DYNAMIC and one four-stage STAGED variant for comparison.
func buildGrid(fractions string) ([]domain.SizingConfig, error) {
	vals, err := parseFractions(fractions)
	if err != nil {
		return nil, err
	}
	sizings := make([]domain.SizingConfig, 0, len(vals)+2)
	for i := range vals {
		sizings = append(sizings, domain.SizingConfig{
			Policy:   domain.SizingPolicyFixed,
			Fraction: &vals[i],
		})
	}
	maxFraction := 1.0
	sizings = append(sizings, domain.SizingConfig{
		Policy:      domain.SizingPolicyDynamic,
		MaxFraction: &maxFraction,
	})
	sizings = append(sizings, domain.SizingConfig{
		Policy: domain.SizingPolicyStaged,
		Stages: []float64{0.25, 0.25, 0.25, 0.25},
	})
	return sizings, nil
}

func parseFractions(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parse fraction %q: %w", p, err)
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("-fractions must name at least one value")
	}
	return vals, nil
}

// writeReports renders the sweep report as Markdown plus run and trade CSVs.
func writeReports(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := map[string]string{
		"sweep_report.md": reporting.RenderMarkdown(report),
		"sweep_runs.csv":  reporting.RenderRunsCSV(report.RunSummaries),
	}
	if report.BestRun != nil {
		files["best_run_trades.csv"] = reporting.RenderTradesCSV(report.BestRun)
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
