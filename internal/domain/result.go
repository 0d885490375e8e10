package domain

import "time"

// PositionState is the simulator state derived from current holdings.
type PositionState string

// Position states.
const (
	PositionFlat    PositionState = "FLAT"
	PositionPartial PositionState = "PARTIAL"
	PositionFull    PositionState = "FULL"
)

// SkipReason classifies a business no-op: an actionable-looking signal that
// executed nothing. These never interrupt a run.
type SkipReason string

// Skip reason codes.
const (
	SkipNoPosition       SkipReason = "NO_POSITION"
	SkipInsufficientCash SkipReason = "INSUFFICIENT_CASH"
	SkipMaxPosition      SkipReason = "MAX_POSITION"
	SkipZeroFraction     SkipReason = "ZERO_FRACTION"
)

// SkippedSignal records a business no-op for observability.
type SkippedSignal struct {
	Date   time.Time  `json:"date"`
	Signal Signal     `json:"signal"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// RunResult is the sole output of a completed simulation run, consumed by
// reporting, persistence and the API layer. All numeric fields are finite and
// all dates serialize as RFC 3339 strings.
type RunResult struct {
	RunID       string             `json:"run_id"`
	Symbol      string             `json:"symbol"`
	SizingID    string             `json:"sizing_id"`
	Config      SimulationConfig   `json:"config"`
	BarCount    int                `json:"bar_count"`
	FinalState  PositionState      `json:"final_state"`
	Trades      []*Trade           `json:"trades"`
	EquityCurve []*EquityPoint     `json:"equity_curve"`
	Skipped     []*SkippedSignal   `json:"skipped,omitempty"`
	Metrics     PerformanceMetrics `json:"metrics"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// FinalEquity returns the last equity value, or initial capital for an
// empty curve.
func (r *RunResult) FinalEquity() float64 {
	if len(r.EquityCurve) == 0 {
		return r.Config.InitialCapital
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Equity
}
