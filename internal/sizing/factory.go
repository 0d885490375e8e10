package sizing

import (
	"errors"
	"fmt"

	"backtest-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownPolicy      = errors.New("unknown sizing policy")
	ErrMissingFraction    = errors.New("FIXED requires fraction")
	ErrInvalidFraction    = errors.New("FIXED fraction must be in (0, 1]")
	ErrMissingMaxFraction = errors.New("DYNAMIC requires max_fraction")
	ErrInvalidMaxFraction = errors.New("DYNAMIC max_fraction must be in (0, 1]")
	ErrMissingStages      = errors.New("STAGED requires a non-empty stages list")
	ErrInvalidStage       = errors.New("STAGED stage fractions must be in (0, 1] and sum to at most 1")
)

// FromConfig creates a Policy from domain.SizingConfig.
// Validates required parameters per policy type and returns clear errors for
// missing or out-of-domain values.
func FromConfig(cfg domain.SizingConfig) (Policy, error) {
	switch cfg.Policy {
	case domain.SizingPolicyFixed:
		return fromFixedConfig(cfg)
	case domain.SizingPolicyDynamic:
		return fromDynamicConfig(cfg)
	case domain.SizingPolicyStaged:
		return fromStagedConfig(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, cfg.Policy)
	}
}

func fromFixedConfig(cfg domain.SizingConfig) (*FixedPolicy, error) {
	if cfg.Fraction == nil {
		return nil, ErrMissingFraction
	}
	if f := *cfg.Fraction; f <= 0 || f > 1 {
		return nil, fmt.Errorf("%w: got %f", ErrInvalidFraction, f)
	}
	return NewFixedPolicy(*cfg.Fraction), nil
}

func fromDynamicConfig(cfg domain.SizingConfig) (*DynamicPolicy, error) {
	if cfg.MaxFraction == nil {
		return nil, ErrMissingMaxFraction
	}
	if f := *cfg.MaxFraction; f <= 0 || f > 1 {
		return nil, fmt.Errorf("%w: got %f", ErrInvalidMaxFraction, f)
	}
	return NewDynamicPolicy(*cfg.MaxFraction), nil
}

func fromStagedConfig(cfg domain.SizingConfig) (*StagedPolicy, error) {
	if len(cfg.Stages) == 0 {
		return nil, ErrMissingStages
	}
	sum := 0.0
	for _, s := range cfg.Stages {
		if s <= 0 || s > 1 {
			return nil, fmt.Errorf("%w: got %f", ErrInvalidStage, s)
		}
		sum += s
	}
	const epsilon = 1e-9
	if sum > 1+epsilon {
		return nil, fmt.Errorf("%w: stages sum to %f", ErrInvalidStage, sum)
	}
	stages := make([]float64, len(cfg.Stages))
	copy(stages, cfg.Stages)
	return NewStagedPolicy(stages), nil
}
