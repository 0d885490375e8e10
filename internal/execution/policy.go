// Package execution holds the pure order math of the engine: slippage-adjusted
// execution prices, commission, and share sizing. Functions here never touch
// portfolio state; the simulator applies their results to the ledger.
package execution

import "math"

// BuyPrice returns the executable buy price: close adjusted against the buyer.
func BuyPrice(closePrice, slippageRate float64) float64 {
	return closePrice * (1 + slippageRate)
}

// SellPrice returns the executable sell price: close adjusted against the seller.
func SellPrice(closePrice, slippageRate float64) float64 {
	return closePrice * (1 - slippageRate)
}

// Commission returns the commission charged on a gross trade value.
// commissionRate is a fraction (0.0015 == 0.15%), never a percent integer.
func Commission(commissionRate, grossValue float64) float64 {
	return commissionRate * grossValue
}

// BuyShares returns the whole number of shares purchasable with allocatedCash
// at price, such that gross value plus commission never exceeds the
// allocation: floor(allocated / (price * (1 + commission_rate))).
// Returns 0 when the allocation cannot afford a single share.
func BuyShares(allocatedCash, price, commissionRate float64) int64 {
	if allocatedCash <= 0 || price <= 0 {
		return 0
	}
	shares := math.Floor(allocatedCash / (price * (1 + commissionRate)))
	if shares < 0 || math.IsNaN(shares) || math.IsInf(shares, 0) {
		return 0
	}
	return int64(shares)
}

// SellShares returns the whole number of shares liquidated by a sell covering
// the given fraction of current holdings. A fraction at or above 1 sells
// everything; a positive fraction always sells at least one share so a
// small position can still be unwound.
func SellShares(held int64, fraction float64) int64 {
	if held <= 0 || fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return held
	}
	shares := int64(math.Floor(float64(held) * fraction))
	if shares < 1 {
		shares = 1
	}
	return shares
}

// BuyCost returns the total cash debit for a buy: gross value plus commission.
func BuyCost(shares int64, price, commissionRate float64) (gross, commission, total float64) {
	gross = float64(shares) * price
	commission = Commission(commissionRate, gross)
	return gross, commission, gross + commission
}

// SellProceeds returns the net cash credit for a sell: gross value minus
// commission.
func SellProceeds(shares int64, price, commissionRate float64) (gross, commission, net float64) {
	gross = float64(shares) * price
	commission = Commission(commissionRate, gross)
	return gross, commission, gross - commission
}
