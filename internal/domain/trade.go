package domain

import "time"

// Action represents the side of an executed trade.
type Action string

// Action constants.
const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Trade is one executed order in the append-only trade log. Trades are
// immutable once appended; the log is the canonical audit trail and, together
// with the equity curve, the sole input to performance calculation.
//
// EntryPrice, HoldingDays, RealizedProfit and RealizedProfitPct are populated
// only for SELL trades and are zero for buys.
type Trade struct {
	Date           time.Time `json:"date"`
	Action         Action    `json:"action"`
	ExecutionPrice float64   `json:"execution_price"` // close adjusted by slippage
	Shares         int64     `json:"shares"`
	Commission     float64   `json:"commission"`
	GrossValue     float64   `json:"gross_value"` // shares * execution_price
	CashBefore     float64   `json:"cash_before"`
	CashAfter      float64   `json:"cash_after"`
	EquityBefore   float64   `json:"equity_before"`
	EquityAfter    float64   `json:"equity_after"`
	TriggerReason  string    `json:"trigger_reason,omitempty"`

	// Sell-only fields.
	EntryPrice        float64 `json:"entry_price,omitempty"`
	HoldingDays       int     `json:"holding_days,omitempty"`
	RealizedProfit    float64 `json:"realized_profit,omitempty"`
	RealizedProfitPct float64 `json:"realized_profit_pct,omitempty"`
}
