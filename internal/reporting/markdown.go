package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d\n\n", r.RunCount))

	// Run comparison
	sb.WriteString("## Runs (ranked by Sharpe)\n\n")
	if len(r.RunSummaries) > 0 {
		sb.WriteString("| Sizing | Bars | Trades | Skipped | Final | Equity | TotalRet | AnnualRet | MaxDD | Sharpe | WinRate | PF |\n")
		sb.WriteString("|--------|------|--------|---------|-------|--------|----------|-----------|-------|--------|---------|----|\n")
		for _, m := range r.RunSummaries {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %s | %.2f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
				m.SizingID, m.BarCount, m.TradeCount, m.SkippedCount, m.FinalState,
				m.FinalEquity, m.TotalReturn, m.AnnualReturn, m.MaxDrawdown,
				m.SharpeRatio, m.WinRate, m.ProfitFactor))
		}
	} else {
		sb.WriteString("No completed runs.\n")
	}
	sb.WriteString("\n")

	// Best run trades
	sb.WriteString("## Best Run Trades\n\n")
	if r.BestRun != nil && len(r.BestRun.Trades) > 0 {
		sb.WriteString(fmt.Sprintf("Run `%s` on %s\n\n", r.BestRun.RunID, r.BestRun.Symbol))
		sb.WriteString("| Date | Action | Price | Shares | Commission | CashAfter | EquityAfter | Profit | Profit% | Held | Reason |\n")
		sb.WriteString("|------|--------|-------|--------|------------|-----------|-------------|--------|---------|------|--------|\n")
		for _, t := range r.BestRun.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %d | %.4f | %.2f | %.2f | %.2f | %.4f | %d | %s |\n",
				t.Date.Format("2006-01-02"), t.Action, t.Price, t.Shares, t.Commission,
				t.CashAfter, t.EquityAfter, t.RealizedProfit, t.RealizedProfitPct,
				t.HoldingDays, t.TriggerReason))
		}
	} else {
		sb.WriteString("No trades executed.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
