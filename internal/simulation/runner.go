package simulation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/sizing"
	"backtest-lab/internal/storage"
)

// RunnerOptions configures a Runner. BarStore is required when runs are
// submitted by symbol; ResultStore, CurveStore, Cache and Metrics are
// optional. CurveStore receives an analytical copy of each completed run's
// equity curve; the result store remains the system of record.
type RunnerOptions struct {
	BarStore    storage.BarStore
	ResultStore storage.RunResultStore
	CurveStore  storage.EquityCurveStore
	Cache       storage.ResultCache
	Metrics     *observability.Metrics
	Logger      *log.Logger
}

// Runner wraps the simulation engine with data loading, result caching, and
// persistence. It is safe for concurrent use: each run owns its own engine
// state, and the stores guard their own concurrency.
type Runner struct {
	bars    storage.BarStore
	results storage.RunResultStore
	curves  storage.EquityCurveStore
	cache   storage.ResultCache
	metrics *observability.Metrics
	logger  *log.Logger
}

// NewRunner creates a Runner from options.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[simulation] ", log.LstdFlags)
	}
	return &Runner{
		bars:    opts.BarStore,
		results: opts.ResultStore,
		curves:  opts.CurveStore,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Run executes one simulation for pre-loaded bars and signals. Identical
// inputs always produce the same run ID, so replays are cache hits and
// duplicate persistence is a silent no-op.
func (r *Runner) Run(ctx context.Context, input *Input) (*domain.RunResult, error) {
	policy, err := sizing.FromConfig(input.Config.Sizing)
	if err != nil {
		return nil, fmt.Errorf("sizing config: %w", err)
	}

	dataHash := idhash.ComputeDataHash(input.Bars, input.Signals)
	runKey := idhash.ComputeRunKey(input.Symbol, policy.ID(), input.Config, dataHash)

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, runKey)
		if err == nil {
			r.logger.Printf("cache hit symbol=%s sizing=%s run=%s", input.Symbol, policy.ID(), runKey)
			if r.metrics != nil {
				r.metrics.CacheHits.Inc()
			}
			return cached, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Printf("cache read failed, simulating: %v", err)
		}
		if r.metrics != nil {
			r.metrics.CacheMisses.Inc()
		}
	}

	started := time.Now()
	result, err := Simulate(ctx, input)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RunsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	result.RunID = runKey
	if r.metrics != nil {
		r.metrics.ObserveRun("ok", policy.ID(), time.Since(started).Seconds(), len(result.Trades), result.BarCount)
		for _, s := range result.Skipped {
			r.metrics.SignalsSkipped.WithLabelValues(string(s.Reason)).Inc()
		}
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, runKey, result); err != nil {
			r.logger.Printf("cache write failed run=%s: %v", runKey, err)
		}
	}
	if r.results != nil {
		err := r.results.Insert(ctx, result)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			// Same inputs already persisted under the same key.
		case err != nil:
			return nil, fmt.Errorf("persist run %s: %w", runKey, err)
		}
	}
	if r.curves != nil {
		err := r.curves.InsertCurve(ctx, runKey, input.Symbol, result.EquityCurve)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			// Curve already copied on an earlier identical run.
		case err != nil:
			// Analytical copy only; never fails the run.
			r.logger.Printf("equity curve copy failed run=%s: %v", runKey, err)
		}
	}

	r.logger.Printf("run complete symbol=%s sizing=%s bars=%d trades=%d skipped=%d final_equity=%.2f",
		input.Symbol, policy.ID(), result.BarCount, len(result.Trades), len(result.Skipped), result.FinalEquity())

	return result, nil
}

// RunSymbol loads bars for a symbol from the bar store and executes one
// simulation against the given signals.
func (r *Runner) RunSymbol(ctx context.Context, symbol string, signals []*domain.SignalRow, cfg domain.SimulationConfig, progress ProgressFunc) (*domain.RunResult, error) {
	if r.bars == nil {
		return nil, errors.New("runner has no bar store configured")
	}
	bars, err := r.bars.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", symbol, err)
	}
	return r.Run(ctx, &Input{
		Symbol:   symbol,
		Bars:     bars,
		Signals:  signals,
		Config:   cfg,
		Progress: progress,
	})
}
