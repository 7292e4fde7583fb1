package ratelimit

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// Construction errors.
var (
	ErrInvalidCapacity = errors.New("ratelimit: capacity must be positive")
	ErrInvalidRate     = errors.New("ratelimit: refill rate must be positive")
)

// Poll bounds for the blocking Acquire.
const (
	minPollInterval = time.Millisecond
	maxPollInterval = 10 * time.Millisecond
)

// Stats holds limiter counters since construction or the last Reset.
type Stats struct {
	Granted  uint64
	Rejected uint64
}

// Limiter is a token bucket holding at most capacity tokens and refilling
// at a fixed rate per second. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	bucket   *rate.Limiter
	capacity int
	rate     float64
	granted  uint64
	rejected uint64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// New creates a full bucket with the given capacity and refill rate in tokens per second.
func New(capacity int, refillPerSec float64, opts ...Option) (*Limiter, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if refillPerSec <= 0 || math.IsNaN(refillPerSec) || math.IsInf(refillPerSec, 0) {
		return nil, ErrInvalidRate
	}

	l := &Limiter{
		clock:    clock.New(),
		capacity: capacity,
		rate:     refillPerSec,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.bucket = l.newBucket()
	return l, nil
}

func (l *Limiter) newBucket() *rate.Limiter {
	b := rate.NewLimiter(rate.Limit(l.rate), l.capacity)
	// Pin the bucket to the injected clock so it starts full at "now".
	b.SetBurstAt(l.clock.Now(), l.capacity)
	return b
}

// TryAcquire takes one token if available.
func (l *Limiter) TryAcquire() bool {
	return l.TryAcquireN(1)
}

// TryAcquireN takes n tokens if at least n are available. A failed attempt
// leaves the bucket unchanged and counts a rejection. n <= 0 always succeeds.
func (l *Limiter) TryAcquireN(n int) bool {
	if n <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bucket.AllowN(l.clock.Now(), n) {
		l.granted++
		return true
	}
	l.rejected++
	return false
}

// Acquire blocks until a token is taken or the timeout elapses.
// A non-positive timeout waits indefinitely. It must not be called from a
// goroutine that other components depend on for progress.
func (l *Limiter) Acquire(timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = l.clock.Now().Add(timeout)
	}
	interval := l.pollInterval()

	for {
		l.mu.Lock()
		ok := l.bucket.AllowN(l.clock.Now(), 1)
		if ok {
			l.granted++
		}
		l.mu.Unlock()
		if ok {
			return true
		}

		if !deadline.IsZero() && !l.clock.Now().Before(deadline) {
			l.mu.Lock()
			l.rejected++
			l.mu.Unlock()
			return false
		}
		l.clock.Sleep(interval)
	}
}

func (l *Limiter) pollInterval() time.Duration {
	l.mu.Lock()
	r := l.rate
	l.mu.Unlock()

	d := time.Duration(float64(time.Second) / r)
	if d < minPollInterval {
		d = minPollInterval
	}
	if d > maxPollInterval {
		d = maxPollInterval
	}
	return d
}

// Available returns the current, refilled token count.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	tokens := l.bucket.TokensAt(l.clock.Now())
	if tokens < 0 {
		return 0
	}
	return math.Min(tokens, float64(l.capacity))
}

// Capacity returns the bucket size.
func (l *Limiter) Capacity() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capacity
}

// Rate returns the refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// Stats returns the granted and rejected counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Granted: l.granted, Rejected: l.rejected}
}

// Reset refills the bucket and zeroes the counters.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.bucket = l.newBucket()
	l.granted = 0
	l.rejected = 0
}

// SetLimits changes capacity and refill rate. Tokens already in the bucket
// are kept, capped at the new capacity.
func (l *Limiter) SetLimits(capacity int, refillPerSec float64) error {
	if capacity <= 0 {
		return ErrInvalidCapacity
	}
	if refillPerSec <= 0 || math.IsNaN(refillPerSec) || math.IsInf(refillPerSec, 0) {
		return ErrInvalidRate
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.bucket.SetLimitAt(now, rate.Limit(refillPerSec))
	l.bucket.SetBurstAt(now, capacity)
	l.capacity = capacity
	l.rate = refillPerSec
	return nil
}
