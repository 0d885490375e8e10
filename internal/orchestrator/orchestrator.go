// Package orchestrator coordinates parameter sweeps.
// It expands a sizing grid into individual simulation jobs, waits for them,
// and ranks the completed runs.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/jobs"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/sizing"
)

// Options for creating Orchestrator.
type Options struct {
	Scheduler *jobs.Scheduler // required
	Logger    *log.Logger
	Verbose   bool
}

// Orchestrator runs one sweep at a time over a shared scheduler.
type Orchestrator struct {
	scheduler *jobs.Scheduler
	logger    *log.Logger
	verbose   bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sweep] ", log.LstdFlags)
	}
	return &Orchestrator{
		scheduler: opts.Scheduler,
		logger:    logger,
		verbose:   opts.Verbose,
	}
}

// Sweep describes one parameter sweep: the same market data and base
// configuration simulated under each sizing variant.
type Sweep struct {
	Symbol  string
	Bars    []*domain.Bar
	Signals []*domain.SignalRow
	Base    domain.SimulationConfig
	Sizings []domain.SizingConfig
}

// SweepResult contains the outcome of a completed sweep.
type SweepResult struct {
	// Ranked holds the completed runs sorted by Sharpe ratio, best first.
	Ranked []*domain.RunResult
	// Errors holds one message per variant that failed or was cancelled.
	Errors []string
}

// Run executes the full sweep.
// Phases:
//  1. Validate every variant up front
//  2. Submit one job per variant and wait for all of them
//  3. Rank completed runs by Sharpe ratio
//
// A variant that fails does not abort the sweep; its error is accumulated.
func (o *Orchestrator) Run(ctx context.Context, sweep *Sweep) (*SweepResult, error) {
	result := &SweepResult{}

	// Phase 1: Validation
	o.log("Phase 1: Validating %d sizing variants...", len(sweep.Sizings))
	if len(sweep.Sizings) == 0 {
		return nil, fmt.Errorf("sweep has no sizing variants")
	}
	for i, sz := range sweep.Sizings {
		cfg := sweep.Base
		cfg.Sizing = sz
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("phase 1 (validate variant %d) failed: %w", i, err)
		}
		if _, err := sizing.FromConfig(sz); err != nil {
			return nil, fmt.Errorf("phase 1 (validate variant %d) failed: %w", i, err)
		}
	}

	// Phase 2: Submission
	o.log("Phase 2: Submitting jobs...")
	var (
		mu        sync.Mutex
		completed []*domain.RunResult
		errs      []string
		wg        sync.WaitGroup
	)

	for i, sz := range sweep.Sizings {
		cfg := sweep.Base
		cfg.Sizing = sz

		input := &simulation.Input{
			Symbol:  sweep.Symbol,
			Bars:    sweep.Bars,
			Signals: sweep.Signals,
			Config:  cfg,
		}

		variant := i
		wg.Add(1)
		_, err := o.scheduler.Submit(input, func(status jobs.Status) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			switch status.State {
			case jobs.StateCompleted:
				completed = append(completed, status.Result)
			default:
				errs = append(errs, fmt.Sprintf("variant %d (%s): %s", variant, status.State, status.Error))
			}
		})
		if err != nil {
			wg.Done()
			return nil, fmt.Errorf("phase 2 (submit variant %d) failed: %w", i, err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	o.log("  %d runs completed (%d errors)", len(completed), len(errs))

	// Phase 3: Ranking
	o.log("Phase 3: Ranking by Sharpe ratio...")
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].Metrics.SharpeRatio > completed[j].Metrics.SharpeRatio
	})
	result.Ranked = completed
	result.Errors = errs

	o.log("Sweep completed: %d variants, %d runs, %d errors",
		len(sweep.Sizings), len(result.Ranked), len(result.Errors))
	return result, nil
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf(format, args...)
	}
}
