// Package finmath provides the numeric-safety helpers shared by the
// simulator and the performance calculator. Non-finite values must never
// reach a persisted or returned result.
package finmath

import "math"

// Sentinel bounds substituted for non-finite values.
const (
	// MaxSentinel replaces +Inf.
	MaxSentinel = 1e9
	// MinSentinel replaces -Inf.
	MinSentinel = -1e9
)

// Sanitize clamps a value into the finite domain:
// +Inf -> MaxSentinel, -Inf -> MinSentinel, NaN -> 0.
func Sanitize(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return MaxSentinel
	case math.IsInf(x, -1):
		return MinSentinel
	default:
		return x
	}
}

// SafeDiv divides a by b, substituting fallback when the denominator is zero
// and sanitizing the quotient.
func SafeDiv(a, b, fallback float64) float64 {
	if b == 0 {
		return fallback
	}
	return Sanitize(a / b)
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
