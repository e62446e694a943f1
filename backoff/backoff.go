// Package backoff provides pluggable retry delay strategies for task execution.
// All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential grows the delay geometrically with the attempt number.
// Delay = min(Initial * Rate^(attempt-1), Max). A Rate of 1 gives a
// constant delay; a Max of 0 means uncapped.
type Exponential struct {
	Initial time.Duration
	Rate    float64
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy with the given
// growth rate. Rates below 1 are treated as 1.
func NewExponential(initial time.Duration, rate float64, maxDelay time.Duration) *Exponential {
	if rate < 1 {
		rate = 1
	}
	return &Exponential{Initial: initial, Rate: rate, Max: maxDelay}
}

// Delay returns Initial * Rate^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(e.Rate, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * Rate^(attempt-1), Max)].
// This prevents thundering herd when many retries happen simultaneously.
type ExponentialWithJitter struct {
	Initial time.Duration
	Rate    float64
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial time.Duration, rate float64, maxDelay time.Duration) *ExponentialWithJitter {
	if rate < 1 {
		rate = 1
	}
	return &ExponentialWithJitter{Initial: initial, Rate: rate, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * Rate^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(e.Rate, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default backoff used for infrastructure
// retries (store reconnects and the like): ExponentialWithJitter with
// 1s initial, doubling, 1m max.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(1*time.Second, 2, 1*time.Minute)
}
