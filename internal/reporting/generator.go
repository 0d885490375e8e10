// Package reporting renders completed runs as Markdown and CSV.
package reporting

import (
	"context"
	"sort"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// Generator produces reports from stored or freshly computed runs.
type Generator struct {
	runStore storage.RunResultStore // optional; Generate requires it
	now      func() time.Time       // injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunResultStore) *Generator {
	return &Generator{
		runStore: runStore,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over all runs stored for a symbol.
func (g *Generator) Generate(ctx context.Context, symbol string) (*Report, error) {
	runs, err := g.runStore.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return g.Build(runs), nil
}

// Build assembles a report from the given runs without touching storage.
// Used directly on sweep output.
func (g *Generator) Build(runs []*domain.RunResult) *Report {
	report := &Report{
		GeneratedAt: g.now(),
		RunCount:    len(runs),
	}

	for _, r := range runs {
		report.RunSummaries = append(report.RunSummaries, RunSummaryRow{
			RunID:        r.RunID,
			Symbol:       r.Symbol,
			SizingID:     r.SizingID,
			BarCount:     r.BarCount,
			TradeCount:   len(r.Trades),
			SkippedCount: len(r.Skipped),
			FinalState:   string(r.FinalState),
			FinalEquity:  r.FinalEquity(),
			TotalReturn:  r.Metrics.TotalReturn,
			AnnualReturn: r.Metrics.AnnualReturn,
			MaxDrawdown:  r.Metrics.MaxDrawdown,
			SharpeRatio:  r.Metrics.SharpeRatio,
			WinRate:      r.Metrics.WinRate,
			ProfitFactor: r.Metrics.ProfitFactor,
		})
	}
	sort.Slice(report.RunSummaries, func(i, j int) bool {
		return report.RunSummaries[i].SharpeRatio > report.RunSummaries[j].SharpeRatio
	})

	if len(report.RunSummaries) > 0 {
		best := report.RunSummaries[0].RunID
		for _, r := range runs {
			if r.RunID == best {
				report.BestRun = buildRunDetail(r)
				break
			}
		}
	}
	return report
}

func buildRunDetail(r *domain.RunResult) *RunDetail {
	detail := &RunDetail{
		RunID:  r.RunID,
		Symbol: r.Symbol,
	}
	for _, t := range r.Trades {
		detail.Trades = append(detail.Trades, TradeRow{
			Date:              t.Date,
			Action:            string(t.Action),
			Price:             t.ExecutionPrice,
			Shares:            t.Shares,
			Commission:        t.Commission,
			CashAfter:         t.CashAfter,
			EquityAfter:       t.EquityAfter,
			RealizedProfit:    t.RealizedProfit,
			RealizedProfitPct: t.RealizedProfitPct,
			HoldingDays:       t.HoldingDays,
			TriggerReason:     t.TriggerReason,
		})
	}
	return detail
}
