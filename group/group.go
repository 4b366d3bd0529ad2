// Package group serializes job holders that share a group id: at most
// one holder per group runs at a time, with optional per-group rate
// limiting on top. The holder itself enforces no mutual exclusion
// between group members; the manager routes every claim through a
// Tracker.
package group

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines optional per-group behaviour. Groups without a Config
// are still serialized but never rate limited.
type Config struct {
	// Name is the group identifier (must match the holder's group id).
	Name string

	// RateLimit is the maximum sustained runs per second for this
	// group. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

type state struct {
	limiter *rate.Limiter
}

// Tracker controls group serialization and rate limiting. It is safe
// for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	configs map[string]*state
	running map[string]struct{}
}

// NewTracker creates a Tracker with the given group configurations.
func NewTracker(configs ...Config) *Tracker {
	t := &Tracker{
		configs: make(map[string]*state, len(configs)),
		running: make(map[string]struct{}),
	}
	for _, cfg := range configs {
		t.configs[cfg.Name] = newState(cfg)
	}
	return t
}

func newState(cfg Config) *state {
	s := &state{}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// TryAcquire claims the run slot for the given group. An empty group id
// always succeeds and claims nothing. The caller MUST call Release with
// the same group id when the run completes.
func (t *Tracker) TryAcquire(groupID string) bool {
	if groupID == "" {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.running[groupID]; busy {
		return false
	}
	if s := t.configs[groupID]; s != nil && s.limiter != nil && !s.limiter.Allow() {
		return false
	}
	t.running[groupID] = struct{}{}
	return true
}

// Release frees the run slot for the given group.
func (t *Tracker) Release(groupID string) {
	if groupID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, groupID)
}

// Running returns the groups that currently hold a run slot, for use
// as a queue exclusion list.
func (t *Tracker) Running() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.running) == 0 {
		return nil
	}
	out := make([]string, 0, len(t.running))
	for g := range t.running {
		out = append(out, g)
	}
	return out
}

// SetConfig dynamically updates (or creates) a group configuration.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.configs[cfg.Name] = newState(cfg)
}
