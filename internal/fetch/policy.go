package fetch

import (
	"time"

	"github.com/cockroachdb/errors"
)

const (
	defaultPollIntervalConstant           = 100 * time.Millisecond
	defaultOverallTimeoutConstant         = 30 * time.Second
	defaultIdleTimeoutConstant            = 5 * time.Second
	defaultGrowthProcessThresholdConstant = 3
	defaultGrowthMultiplierConstant       = 2

	idleExceedsOverallMessageConstant = "fetch idle timeout must not exceed the overall timeout"
)

// ErrInvalidPolicy reports an inconsistent fetch policy.
var ErrInvalidPolicy = errors.New("invalid fetch policy")

// Policy holds the timing thresholds applied to every supervised fetch.
type Policy struct {
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	OverallTimeout         time.Duration `mapstructure:"overall_timeout"`
	IdleTimeout            time.Duration `mapstructure:"idle_timeout"`
	GrowthProcessThreshold int           `mapstructure:"growth_process_threshold"`
	GrowthMultiplier       int           `mapstructure:"growth_multiplier"`
}

// DefaultPolicy returns the thresholds used when configuration leaves them unset.
func DefaultPolicy() Policy {
	return Policy{
		PollInterval:           defaultPollIntervalConstant,
		OverallTimeout:         defaultOverallTimeoutConstant,
		IdleTimeout:            defaultIdleTimeoutConstant,
		GrowthProcessThreshold: defaultGrowthProcessThresholdConstant,
		GrowthMultiplier:       defaultGrowthMultiplierConstant,
	}
}

// Sanitize replaces non-positive values with defaults.
func (policy Policy) Sanitize() Policy {
	defaults := DefaultPolicy()
	if policy.PollInterval <= 0 {
		policy.PollInterval = defaults.PollInterval
	}
	if policy.OverallTimeout <= 0 {
		policy.OverallTimeout = defaults.OverallTimeout
	}
	if policy.IdleTimeout <= 0 {
		policy.IdleTimeout = defaults.IdleTimeout
	}
	if policy.GrowthProcessThreshold <= 0 {
		policy.GrowthProcessThreshold = defaults.GrowthProcessThreshold
	}
	if policy.GrowthMultiplier <= 0 {
		policy.GrowthMultiplier = defaults.GrowthMultiplier
	}
	return policy
}

// Validate rejects policies whose idle timeout could never fire before the overall timeout.
func (policy Policy) Validate() error {
	if policy.IdleTimeout > policy.OverallTimeout {
		return errors.Wrap(ErrInvalidPolicy, idleExceedsOverallMessageConstant)
	}
	return nil
}
