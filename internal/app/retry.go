package app

import (
	"context"
	"math/rand"
	"time"
)

// Default retry configuration values.
const (
	DefaultRetryInterval = 2 * time.Second
	DefaultRetryMax      = 2 * time.Second
)

// retry paces reconnection attempts. With initial == max it waits a fixed
// interval; otherwise the wait doubles up to max, with ±20% jitter.
type retry struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// newRetry creates a retry policy with the given initial and max durations.
func newRetry(initial, max time.Duration) *retry {
	if initial <= 0 {
		initial = DefaultRetryInterval
	}
	if max < initial {
		max = initial
	}
	return &retry{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Wait blocks for the next delay or until ctx is done, and advances the delay.
func (r *retry) Wait(ctx context.Context) error {
	timer := time.NewTimer(r.next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// next returns the delay to wait now and grows the following one.
func (r *retry) next() time.Duration {
	if r.initial == r.max {
		return r.current
	}

	// Add jitter: ±20%
	jitter := float64(r.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(r.current) + jitter)

	r.current *= 2
	if r.current > r.max {
		r.current = r.max
	}
	return d
}

// Reset returns to the initial delay.
func (r *retry) Reset() {
	r.current = r.initial
}

// Current returns the current base delay.
func (r *retry) Current() time.Duration {
	return r.current
}
