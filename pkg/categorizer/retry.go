package categorizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how often a categorization call is attempted and how
// long to wait between attempts. The wait after the n-th failed attempt is
// Multiplier * 2^(n+1) units, clamped to [Min, Max].
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Multiplier  float64       `mapstructure:"multiplier"`
	Min         float64       `mapstructure:"min"`
	Max         float64       `mapstructure:"max"`
	Unit        time.Duration `mapstructure:"unit"`
}

// DefaultRetryPolicy makes up to 3 attempts waiting 4s then 8s, never more than 15s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Multiplier:  1,
	Min:         4,
	Max:         15,
	Unit:        time.Second,
}

// Validate reports an error for a policy that cannot be used.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Multiplier < 0 || p.Min < 0 || p.Max < 0 {
		return fmt.Errorf("retry multiplier, min and max must be non-negative")
	}
	if p.Max < p.Min {
		return fmt.Errorf("retry max (%g) must not be smaller than min (%g)", p.Max, p.Min)
	}
	if p.Unit <= 0 {
		return fmt.Errorf("retry unit must be positive, got %s", p.Unit)
	}
	return nil
}

// Wait returns the delay that follows the given failed attempt (1-based).
func (p RetryPolicy) Wait(attempt int) time.Duration {
	units := p.Multiplier * math.Pow(2, float64(attempt+1))
	units = math.Max(p.Min, math.Min(units, p.Max))
	return time.Duration(units * float64(p.Unit))
}

// exponentialWait is a backoff.BackOff producing RetryPolicy.Wait delays.
type exponentialWait struct {
	policy  RetryPolicy
	attempt int
}

func (w *exponentialWait) NextBackOff() time.Duration {
	w.attempt++
	return w.policy.Wait(w.attempt)
}

func (w *exponentialWait) Reset() { w.attempt = 0 }

// backOff builds the bounded, context-aware schedule for one Categorize call.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if p.MaxAttempts > 1 {
		b = backoff.WithMaxRetries(&exponentialWait{policy: p}, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}
