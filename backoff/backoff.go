// Package backoff provides retry delay policies consulted by the
// manager when a holder comes back with a retryable outcome. All
// policies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy computes the delay before a retry attempt. The attempt count
// matches the holder's run count: Next(1) is the delay after the first
// failed run.
type Policy interface {
	Next(attempt int) time.Duration
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(attempt int) time.Duration

// Next calls the wrapped function.
func (f PolicyFunc) Next(attempt int) time.Duration { return f(attempt) }

// Fixed returns a policy with the same delay for every attempt.
func Fixed(interval time.Duration) Policy {
	return PolicyFunc(func(int) time.Duration { return interval })
}

// Linear returns a policy whose delay grows linearly with the attempt
// count: min(initial * attempt, maxDelay). A zero maxDelay means no cap.
func Linear(initial, maxDelay time.Duration) Policy {
	return PolicyFunc(func(attempt int) time.Duration {
		d := initial * time.Duration(attempt)
		return clamp(d, maxDelay)
	})
}

// Exponential returns a policy that doubles the delay each attempt:
// min(initial * 2^(attempt-1), maxDelay). A zero maxDelay means no cap.
func Exponential(initial, maxDelay time.Duration) Policy {
	return PolicyFunc(func(attempt int) time.Duration {
		d := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
		return clamp(d, maxDelay)
	})
}

// ExponentialJitter returns an exponential policy with full jitter:
// a random delay in [0, min(initial * 2^(attempt-1), maxDelay)].
// Jitter spreads simultaneous retries so they do not stampede.
func ExponentialJitter(initial, maxDelay time.Duration) Policy {
	exp := Exponential(initial, maxDelay)
	return PolicyFunc(func(attempt int) time.Duration {
		return time.Duration(rand.Float64() * float64(exp.Next(attempt)))
	})
}

// Default returns the policy the manager falls back to when a job's
// RetryConstraint sets no delay: exponential with full jitter, 1s
// initial and 1m cap.
func Default() Policy {
	return ExponentialJitter(1*time.Second, 1*time.Minute)
}

func clamp(d, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}
