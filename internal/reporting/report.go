package reporting

import "time"

// Report represents a backtest report over a set of completed runs.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunCount    int

	// RunSummaries, sorted by Sharpe ratio descending.
	RunSummaries []RunSummaryRow

	// BestRun holds the trade-level detail of the top-ranked run, if any.
	BestRun *RunDetail
}

// RunSummaryRow is one row in the run comparison table.
type RunSummaryRow struct {
	RunID        string
	Symbol       string
	SizingID     string
	BarCount     int
	TradeCount   int
	SkippedCount int
	FinalState   string
	FinalEquity  float64
	TotalReturn  float64
	AnnualReturn float64
	MaxDrawdown  float64
	SharpeRatio  float64
	WinRate      float64
	ProfitFactor float64
}

// RunDetail is the per-trade breakdown of one run.
type RunDetail struct {
	RunID  string
	Symbol string
	Trades []TradeRow
}

// TradeRow is one executed trade in a detail table.
type TradeRow struct {
	Date              time.Time
	Action            string
	Price             float64
	Shares            int64
	Commission        float64
	CashAfter         float64
	EquityAfter       float64
	RealizedProfit    float64
	RealizedProfitPct float64
	HoldingDays       int
	TriggerReason     string
}
