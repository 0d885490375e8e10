package domain

import (
	"errors"
	"fmt"
	"time"
)

// Signal is a per-bar trading instruction from the strategy layer.
type Signal int

// Signal values.
const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

// String renders the signal for logs and human-readable output.
func (s Signal) String() string {
	switch s {
	case SignalSell:
		return "SELL"
	case SignalHold:
		return "HOLD"
	case SignalBuy:
		return "BUY"
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

// Signal stream alignment errors. Misalignment is structural: the run fails
// immediately rather than being recorded as a skipped signal.
var (
	ErrSignalValue       = errors.New("signal outside {-1, 0, 1}")
	ErrSignalSize        = errors.New("suggested position size outside (0, 1]")
	ErrSignalUnknownDate = errors.New("signal date has no matching bar")
	ErrSignalDuplicate   = errors.New("duplicate signal date")
)

// SignalRow is one entry of the signal stream, aligned 1:1 with a Bar by date.
// SuggestedPositionSize and Strength are optional; when absent the configured
// sizing policy decides. TriggerReason is audit-only and never drives control flow.
type SignalRow struct {
	Date                  time.Time `json:"date"`
	Signal                Signal    `json:"signal"`
	SuggestedPositionSize *float64  `json:"suggested_position_size,omitempty"`
	Strength              *float64  `json:"strength,omitempty"`
	TriggerReason         string    `json:"trigger_reason,omitempty"`
}

// Validate checks a single row's value domains.
func (r *SignalRow) Validate() error {
	if r.Signal < SignalSell || r.Signal > SignalBuy {
		return fmt.Errorf("%w: %d at %s", ErrSignalValue, r.Signal, r.Date.Format(time.RFC3339))
	}
	if r.SuggestedPositionSize != nil {
		if s := *r.SuggestedPositionSize; s <= 0 || s > 1 {
			return fmt.Errorf("%w: %f at %s", ErrSignalSize, s, r.Date.Format(time.RFC3339))
		}
	}
	return nil
}

// AlignSignals matches a signal stream to a bar series by date.
// The returned slice has exactly one entry per bar; bars without a signal row
// get a nil entry, which the simulator treats as hold. A signal dated outside
// the bar series or a duplicate date fails alignment.
func AlignSignals(bars []*Bar, signals []*SignalRow) ([]*SignalRow, error) {
	index := make(map[time.Time]int, len(bars))
	for i, b := range bars {
		index[b.Date] = i
	}

	aligned := make([]*SignalRow, len(bars))
	for _, row := range signals {
		if row == nil {
			continue
		}
		if err := row.Validate(); err != nil {
			return nil, err
		}
		i, ok := index[row.Date]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSignalUnknownDate, row.Date.Format(time.RFC3339))
		}
		if aligned[i] != nil {
			return nil, fmt.Errorf("%w: %s", ErrSignalDuplicate, row.Date.Format(time.RFC3339))
		}
		aligned[i] = row
	}
	return aligned, nil
}
