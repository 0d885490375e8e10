package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bar validation errors. Violations are structural: they fail the whole run.
var (
	ErrBarPrice  = errors.New("bar has non-positive or non-finite price")
	ErrBarRange  = errors.New("bar open/close outside low/high range")
	ErrBarVolume = errors.New("bar has negative volume")
	ErrBarOrder  = errors.New("bars are not strictly increasing by date")
	ErrNoBars    = errors.New("no bars available")
)

// Bar represents one OHLCV record for a fixed time interval.
// Bars are immutable and supplied by an external market data provider;
// Validate is the cheap assertion applied at the simulation boundary.
type Bar struct {
	Symbol string    `json:"symbol,omitempty"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks price and volume consistency for a single bar.
func (b *Bar) Validate() error {
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if p <= 0 || math.IsInf(p, 0) || math.IsNaN(p) {
			return fmt.Errorf("%w: %s", ErrBarPrice, b.Date.Format(time.RFC3339))
		}
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("%w: %s", ErrBarRange, b.Date.Format(time.RFC3339))
	}
	if b.Volume < 0 || math.IsNaN(b.Volume) {
		return fmt.Errorf("%w: %s", ErrBarVolume, b.Date.Format(time.RFC3339))
	}
	return nil
}

// ValidateBars checks every bar plus strict date monotonicity across the series.
func ValidateBars(bars []*Bar) error {
	if len(bars) == 0 {
		return ErrNoBars
	}
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}
		if i > 0 && !bars[i-1].Date.Before(b.Date) {
			return fmt.Errorf("%w: %s >= %s",
				ErrBarOrder,
				bars[i-1].Date.Format(time.RFC3339),
				b.Date.Format(time.RFC3339))
		}
	}
	return nil
}

// ClipBars returns the sub-series within [start, end]. Nil bounds are open.
func ClipBars(bars []*Bar, start, end *time.Time) []*Bar {
	out := make([]*Bar, 0, len(bars))
	for _, b := range bars {
		if start != nil && b.Date.Before(*start) {
			continue
		}
		if end != nil && b.Date.After(*end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
