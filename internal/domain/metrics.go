package domain

// PerformanceMetrics summarizes a completed run. Recomputed wholesale from
// the trade log and equity curve, never incrementally mutated. All fields
// are guaranteed finite: degenerate inputs resolve to sentinel values
// instead of NaN or Inf.
type PerformanceMetrics struct {
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
}
