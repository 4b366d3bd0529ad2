package backoff_test

import (
	"testing"
	"time"

	"github.com/nnikos123/android-priority-jobqueue/backoff"
)

func TestFixed_ReturnsSameDelay(t *testing.T) {
	p := backoff.Fixed(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := p.Next(attempt); got != 5*time.Second {
			t.Errorf("Next(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestLinear_GrowsLinearly(t *testing.T) {
	p := backoff.Linear(time.Second, time.Minute)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{5, 5 * time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Next(tt.attempt); got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestLinear_CapsAtMax(t *testing.T) {
	p := backoff.Linear(time.Second, 5*time.Second)

	if got := p.Next(10); got != 5*time.Second {
		t.Errorf("Next(10) = %v, want %v (capped)", got, 5*time.Second)
	}
	if got := p.Next(100); got != 5*time.Second {
		t.Errorf("Next(100) = %v, want %v (capped)", got, 5*time.Second)
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	p := backoff.Exponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},  // 1 * 2^0
		{2, 2 * time.Second},  // 1 * 2^1
		{3, 4 * time.Second},  // 1 * 2^2
		{4, 8 * time.Second},  // 1 * 2^3
		{5, 16 * time.Second}, // 1 * 2^4
	}
	for _, tt := range tests {
		if got := p.Next(tt.attempt); got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	p := backoff.Exponential(time.Second, 10*time.Second)

	// Attempt 5 would be 16s, above the 10s cap.
	if got := p.Next(5); got != 10*time.Second {
		t.Errorf("Next(5) = %v, want %v (capped)", got, 10*time.Second)
	}
	if got := p.Next(20); got != 10*time.Second {
		t.Errorf("Next(20) = %v, want %v (capped)", got, 10*time.Second)
	}
}

func TestExponentialJitter_WithinBounds(t *testing.T) {
	p := backoff.ExponentialJitter(time.Second, 10*time.Second)

	for attempt := 1; attempt <= 5; attempt++ {
		for range 100 {
			got := p.Next(attempt)
			if got < 0 {
				t.Errorf("Next(%d) = %v, should be >= 0", attempt, got)
			}
			if got > 10*time.Second {
				t.Errorf("Next(%d) = %v, should be <= %v", attempt, got, 10*time.Second)
			}
		}
	}
}

func TestExponentialJitter_ProducesVariance(t *testing.T) {
	p := backoff.ExponentialJitter(time.Second, time.Minute)

	seen := make(map[time.Duration]bool)
	for range 100 {
		seen[p.Next(3)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got only %d distinct values", len(seen))
	}
}

func TestDefault_ReturnsBoundedJitter(t *testing.T) {
	p := backoff.Default()
	if p == nil {
		t.Fatal("Default() returned nil")
	}

	d := p.Next(1)
	if d < 0 {
		t.Errorf("Default().Next(1) = %v, should be >= 0", d)
	}
	if d > time.Second {
		t.Errorf("Default().Next(1) = %v, should be <= 1s (initial)", d)
	}
}
