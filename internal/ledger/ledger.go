// Package ledger tracks the cash and position state of one simulation run.
// The Ledger is the single source of truth for holdings and is exclusively
// owned by one run; it is never shared across concurrent simulations.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Ledger errors. The simulator sizes orders so these cannot trigger; a
// returned error therefore indicates a bug upstream, not a business no-op.
var (
	ErrInsufficientCash = errors.New("buy cost exceeds available cash")
	ErrInsufficientHeld = errors.New("sell exceeds held shares")
	ErrNonPositiveOrder = errors.New("order shares and price must be positive")
)

// Ledger holds the mutable portfolio state. Invariant: SharesHeld == 0 if
// and only if AvgEntryPrice is zero and EntryDate is the zero time.
type Ledger struct {
	Cash          float64
	SharesHeld    int64
	AvgEntryPrice float64   // defined only while SharesHeld > 0
	EntryDate     time.Time // date of the position's first open lot
}

// New creates a Ledger holding only cash.
func New(initialCapital float64) *Ledger {
	return &Ledger{Cash: initialCapital}
}

// PositionValue returns the mark-to-market value of current holdings.
func (l *Ledger) PositionValue(closePrice float64) float64 {
	return float64(l.SharesHeld) * closePrice
}

// Equity returns cash plus mark-to-market position value.
func (l *Ledger) Equity(closePrice float64) float64 {
	return l.Cash + l.PositionValue(closePrice)
}

// Flat reports whether the ledger holds no position.
func (l *Ledger) Flat() bool {
	return l.SharesHeld == 0
}

// ApplyBuy debits cash by gross value plus commission, increases holdings,
// and recomputes the average entry price as the volume-weighted average of
// the old and new lots. The first lot of a position records the entry date.
func (l *Ledger) ApplyBuy(date time.Time, shares int64, price, commission float64) error {
	if shares <= 0 || price <= 0 {
		return fmt.Errorf("%w: shares=%d price=%f", ErrNonPositiveOrder, shares, price)
	}
	cost := float64(shares)*price + commission
	if cost > l.Cash {
		return fmt.Errorf("%w: cost=%.2f cash=%.2f", ErrInsufficientCash, cost, l.Cash)
	}

	if l.SharesHeld == 0 {
		l.AvgEntryPrice = price
		l.EntryDate = date
	} else {
		oldValue := float64(l.SharesHeld) * l.AvgEntryPrice
		newValue := float64(shares) * price
		l.AvgEntryPrice = (oldValue + newValue) / float64(l.SharesHeld+shares)
	}

	l.Cash -= cost
	l.SharesHeld += shares
	return nil
}

// SellOutcome reports the realized side of an executed sell.
type SellOutcome struct {
	Proceeds          float64 // gross value minus commission
	EntryPrice        float64 // average entry price of the sold shares
	HoldingDays       int
	RealizedProfit    float64 // proceeds minus shares * average entry price
	RealizedProfitPct float64
}

// ApplySell credits cash by gross value minus commission, decreases holdings,
// and books realized profit against the average entry price. When holdings
// reach zero the entry price and entry date are cleared.
func (l *Ledger) ApplySell(date time.Time, shares int64, price, commission float64) (*SellOutcome, error) {
	if shares <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: shares=%d price=%f", ErrNonPositiveOrder, shares, price)
	}
	if shares > l.SharesHeld {
		return nil, fmt.Errorf("%w: sell=%d held=%d", ErrInsufficientHeld, shares, l.SharesHeld)
	}

	proceeds := float64(shares)*price - commission
	costBasis := float64(shares) * l.AvgEntryPrice
	profit := proceeds - costBasis

	profitPct := 0.0
	if costBasis > 0 {
		profitPct = profit / costBasis
	}

	outcome := &SellOutcome{
		Proceeds:          proceeds,
		EntryPrice:        l.AvgEntryPrice,
		HoldingDays:       int(date.Sub(l.EntryDate).Hours() / 24),
		RealizedProfit:    profit,
		RealizedProfitPct: profitPct,
	}

	l.Cash += proceeds
	l.SharesHeld -= shares
	if l.SharesHeld == 0 {
		l.AvgEntryPrice = 0
		l.EntryDate = time.Time{}
	}
	return outcome, nil
}
