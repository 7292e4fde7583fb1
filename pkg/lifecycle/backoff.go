package lifecycle

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: exponential growth from initial to
// max with ±20% jitter. With max equal to initial and no jitter the delay
// is fixed.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	jitter  bool
}

// NewBackoff creates a new backoff with the given initial and max durations.
func NewBackoff(initial, max time.Duration) *Backoff {
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
		jitter:  max > initial,
	}
}

// Next returns the delay to wait now and increases it for the next call.
func (b *Backoff) Next() time.Duration {
	delay := b.current
	if b.jitter {
		// Add jitter: ±20%
		jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(b.current) + jitter)
	}

	// Increase for next time
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset resets the backoff to the initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration.
func (b *Backoff) Current() time.Duration {
	return b.current
}
