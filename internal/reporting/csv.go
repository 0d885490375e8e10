package reporting

import (
	"fmt"
	"strings"
)

// RenderRunsCSV renders run summaries as CSV string.
func RenderRunsCSV(rows []RunSummaryRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,symbol,sizing_id,bar_count,trade_count,skipped_count,final_state,final_equity,")
	sb.WriteString("total_return,annual_return,max_drawdown,sharpe_ratio,win_rate,profit_factor\n")

	// Rows
	for _, m := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%d,%s,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			m.RunID,
			m.Symbol,
			m.SizingID,
			m.BarCount,
			m.TradeCount,
			m.SkippedCount,
			m.FinalState,
			m.FinalEquity,
			m.TotalReturn,
			m.AnnualReturn,
			m.MaxDrawdown,
			m.SharpeRatio,
			m.WinRate,
			m.ProfitFactor,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders a run's trade log as CSV string.
func RenderTradesCSV(detail *RunDetail) string {
	var sb strings.Builder

	sb.WriteString("date,action,price,shares,commission,cash_after,equity_after,")
	sb.WriteString("realized_profit,realized_profit_pct,holding_days,trigger_reason\n")

	if detail == nil {
		return sb.String()
	}
	for _, t := range detail.Trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%s\n",
			t.Date.Format("2006-01-02"),
			t.Action,
			t.Price,
			t.Shares,
			t.Commission,
			t.CashAfter,
			t.EquityAfter,
			t.RealizedProfit,
			t.RealizedProfitPct,
			t.HoldingDays,
			strings.ReplaceAll(t.TriggerReason, ",", ";"),
		))
	}

	return sb.String()
}
