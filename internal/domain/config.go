package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sizing policy type constants.
const (
	SizingPolicyFixed   = "FIXED"
	SizingPolicyDynamic = "DYNAMIC"
	SizingPolicyStaged  = "STAGED"
)

// Configuration errors. A configuration value outside its valid domain is a
// structural failure: the run is rejected before the first bar.
var (
	ErrInvalidInitialCapital   = errors.New("initial_capital must be > 0")
	ErrInvalidCommissionRate   = errors.New("commission_rate must be a fraction in [0, 1)")
	ErrInvalidSlippageRate     = errors.New("slippage_rate must be a fraction in [0, 1)")
	ErrInvalidMaxPositionRatio = errors.New("max_position_ratio must be in (0, 1]")
	ErrInvalidRiskFreeRate     = errors.New("risk_free_rate must be finite and in [-1, 1)")
	ErrInvalidDateBounds       = errors.New("start_date must not be after end_date")
)

// SizingConfig selects and parameterizes a position-sizing policy.
// Pointer fields are required only by the policy that reads them; the sizing
// factory validates per-policy requirements.
type SizingConfig struct {
	Policy string `json:"policy" yaml:"policy"` // FIXED | DYNAMIC | STAGED

	// FIXED: fraction of current cash committed on every buy.
	Fraction *float64 `json:"fraction,omitempty" yaml:"fraction,omitempty"`

	// DYNAMIC: upper clip for the strength-scaled fraction.
	MaxFraction *float64 `json:"max_fraction,omitempty" yaml:"max_fraction,omitempty"`

	// STAGED: fractions consumed one per buy signal, reset when flat.
	Stages []float64 `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// SimulationConfig is the run-level configuration surface.
// CommissionRate and SlippageRate are fractions (0.0015 means 0.15%);
// callers holding percent-shaped values must convert via PercentToRate
// before constructing the config.
type SimulationConfig struct {
	InitialCapital   float64      `json:"initial_capital" yaml:"initial_capital"`
	CommissionRate   float64      `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate     float64      `json:"slippage_rate" yaml:"slippage_rate"`
	MaxPositionRatio float64      `json:"max_position_ratio" yaml:"max_position_ratio"`
	RiskFreeRate     float64      `json:"risk_free_rate" yaml:"risk_free_rate"`
	Sizing           SizingConfig `json:"sizing" yaml:"sizing"`

	// Optional bounds applied to the bar stream before simulation begins.
	StartDate *time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

// DefaultSimulationConfig returns a config with documented defaults:
// 100k capital, 0.15% commission, 0.1% slippage, full-cash fixed sizing.
func DefaultSimulationConfig() SimulationConfig {
	fraction := 1.0
	return SimulationConfig{
		InitialCapital:   100_000,
		CommissionRate:   0.0015,
		SlippageRate:     0.001,
		MaxPositionRatio: 1.0,
		RiskFreeRate:     0.02,
		Sizing: SizingConfig{
			Policy:   SizingPolicyFixed,
			Fraction: &fraction,
		},
	}
}

// Validate checks the numeric fields against their valid domains.
// Sizing sub-parameters are validated by the sizing factory.
func (c *SimulationConfig) Validate() error {
	if math.IsNaN(c.InitialCapital) || math.IsInf(c.InitialCapital, 0) || c.InitialCapital <= 0 {
		return fmt.Errorf("%w: got %f", ErrInvalidInitialCapital, c.InitialCapital)
	}
	if math.IsNaN(c.CommissionRate) || c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("%w: got %f", ErrInvalidCommissionRate, c.CommissionRate)
	}
	if math.IsNaN(c.SlippageRate) || c.SlippageRate < 0 || c.SlippageRate >= 1 {
		return fmt.Errorf("%w: got %f", ErrInvalidSlippageRate, c.SlippageRate)
	}
	if math.IsNaN(c.MaxPositionRatio) || c.MaxPositionRatio <= 0 || c.MaxPositionRatio > 1 {
		return fmt.Errorf("%w: got %f", ErrInvalidMaxPositionRatio, c.MaxPositionRatio)
	}
	if math.IsNaN(c.RiskFreeRate) || c.RiskFreeRate < -1 || c.RiskFreeRate >= 1 {
		return fmt.Errorf("%w: got %f", ErrInvalidRiskFreeRate, c.RiskFreeRate)
	}
	if c.StartDate != nil && c.EndDate != nil && c.StartDate.After(*c.EndDate) {
		return ErrInvalidDateBounds
	}
	return nil
}

// PercentToRate converts a percent-shaped value to the fractional rate the
// engine expects: PercentToRate(0.15) == 0.0015.
func PercentToRate(percent float64) float64 {
	return percent / 100
}
