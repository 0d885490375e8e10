package domain

import "time"

// EquityPoint is one point of the equity curve, created once per bar in
// chronological order (including bars with no trade) and never mutated.
// Drawdown is stored as a non-negative magnitude: the fraction below the
// running high-water mark of equity.
type EquityPoint struct {
	Date          time.Time `json:"date"`
	Cash          float64   `json:"cash"`
	SharesHeld    int64     `json:"shares_held"`
	PositionValue float64   `json:"position_value"` // shares_held * close
	Equity        float64   `json:"equity"`         // cash + position_value
	Drawdown      float64   `json:"drawdown"`

	// Pass-through OHLCV for charting.
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
