package jobqueue

import (
	"time"

	"github.com/nnikos123/android-priority-jobqueue/backoff"
)

// RetryConstraint describes how a holder should be re-enqueued after a
// retryable outcome: the backoff delay before the next attempt and
// optional priority and group changes. The holder exposes it as a
// read-only pass-through; only the manager interprets it.
//
// All accessors are nil-safe: a nil constraint reports nothing set.
type RetryConstraint struct {
	delay    *time.Duration
	policy   backoff.Policy
	priority *int
	groupID  *string
}

// RetryOption configures a RetryConstraint.
type RetryOption func(*RetryConstraint)

// WithRetryDelay sets a fixed delay before every retry. Takes
// precedence over a backoff policy.
func WithRetryDelay(d time.Duration) RetryOption {
	return func(c *RetryConstraint) { c.delay = &d }
}

// WithRetryPolicy sets a per-attempt backoff policy.
func WithRetryPolicy(p backoff.Policy) RetryOption {
	return func(c *RetryConstraint) { c.policy = p }
}

// WithRetryPriority changes the holder's priority on retry.
func WithRetryPriority(p int) RetryOption {
	return func(c *RetryConstraint) { c.priority = &p }
}

// WithRetryGroup moves the holder to a different group on retry.
func WithRetryGroup(groupID string) RetryOption {
	return func(c *RetryConstraint) { c.groupID = &groupID }
}

// NewRetryConstraint creates a RetryConstraint from options.
func NewRetryConstraint(opts ...RetryOption) *RetryConstraint {
	c := &RetryConstraint{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExponentialRetry is shorthand for a constraint whose delay grows
// exponentially from initial up to maxDelay.
func ExponentialRetry(initial, maxDelay time.Duration) *RetryConstraint {
	return NewRetryConstraint(WithRetryPolicy(backoff.Exponential(initial, maxDelay)))
}

// DelayFor returns the delay before the given attempt. The fixed delay
// wins over the policy; with neither set ok is false.
func (c *RetryConstraint) DelayFor(attempt int) (time.Duration, bool) {
	if c == nil {
		return 0, false
	}
	if c.delay != nil {
		return *c.delay, true
	}
	if c.policy != nil {
		return c.policy.Next(attempt), true
	}
	return 0, false
}

// Priority returns the replacement priority, if one was set.
func (c *RetryConstraint) Priority() (int, bool) {
	if c == nil || c.priority == nil {
		return 0, false
	}
	return *c.priority, true
}

// GroupID returns the replacement group, if one was set.
func (c *RetryConstraint) GroupID() (string, bool) {
	if c == nil || c.groupID == nil {
		return "", false
	}
	return *c.groupID, true
}
