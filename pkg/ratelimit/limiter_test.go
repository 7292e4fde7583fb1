package ratelimit

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLimiter(t *testing.T, capacity int, refill float64) (*Limiter, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	l, err := New(capacity, refill, WithClock(mock))
	require.NoError(t, err)
	return l, mock
}

func TestNew_RejectsNonPositive(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		rate     float64
		wantErr  error
	}{
		{"zero capacity", 0, 1, ErrInvalidCapacity},
		{"negative capacity", -1, 1, ErrInvalidCapacity},
		{"zero rate", 1, 0, ErrInvalidRate},
		{"negative rate", 1, -5, ErrInvalidRate},
		{"nan rate", 1, math.NaN(), ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.capacity, tt.rate)
			assert.Nil(t, l)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLimiter_StartsFull(t *testing.T) {
	l, _ := newMockLimiter(t, 10, 5)
	assert.InDelta(t, 10, l.Available(), 1e-9)
	assert.Equal(t, 10, l.Capacity())
	assert.Equal(t, 5.0, l.Rate())
}

// Capacity 10, refill 5/s: ten immediate grants, the eleventh is rejected,
// and one second later at least five more are granted.
func TestLimiter_BurstThenRefill(t *testing.T) {
	l, mock := newMockLimiter(t, 10, 5)

	for i := 0; i < 10; i++ {
		require.True(t, l.TryAcquire(), "acquire %d", i+1)
	}
	assert.False(t, l.TryAcquire(), "11th acquire must be rejected")
	assert.Equal(t, Stats{Granted: 10, Rejected: 1}, l.Stats())

	mock.Add(time.Second)

	granted := 0
	for l.TryAcquire() {
		granted++
	}
	assert.GreaterOrEqual(t, granted, 5)
	assert.LessOrEqual(t, granted, 10)
}

func TestLimiter_FailedAcquireDoesNotMutate(t *testing.T) {
	l, mock := newMockLimiter(t, 5, 2)

	require.True(t, l.TryAcquireN(4))
	before := l.Available()

	assert.False(t, l.TryAcquireN(2))
	assert.InDelta(t, before, l.Available(), 1e-9)

	mock.Add(500 * time.Millisecond)
	assert.InDelta(t, 2, l.Available(), 1e-9)
	assert.True(t, l.TryAcquireN(2))
}

func TestLimiter_TokensStayInBounds(t *testing.T) {
	l, mock := newMockLimiter(t, 8, 3)

	steps := []time.Duration{0, 10 * time.Millisecond, 300 * time.Millisecond, time.Second, 5 * time.Second, 0, 90 * time.Millisecond}
	for round := 0; round < 20; round++ {
		mock.Add(steps[round%len(steps)])
		n := round%4 + 1
		l.TryAcquireN(n)

		tokens := l.Available()
		require.GreaterOrEqual(t, tokens, 0.0)
		require.LessOrEqual(t, tokens, 8.0)
	}

	mock.Add(time.Hour)
	assert.InDelta(t, 8, l.Available(), 1e-9)
}

func TestLimiter_NonPositiveNAlwaysSucceeds(t *testing.T) {
	l, _ := newMockLimiter(t, 1, 1)
	require.True(t, l.TryAcquire())

	assert.True(t, l.TryAcquireN(0))
	assert.True(t, l.TryAcquireN(-3))
	assert.Equal(t, uint64(0), l.Stats().Rejected)
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newMockLimiter(t, 3, 1)
	for l.TryAcquire() {
	}
	require.Equal(t, uint64(1), l.Stats().Rejected)

	l.Reset()

	assert.InDelta(t, 3, l.Available(), 1e-9)
	assert.Equal(t, Stats{}, l.Stats())
}

func TestLimiter_SetLimits(t *testing.T) {
	l, mock := newMockLimiter(t, 10, 1)

	require.NoError(t, l.SetLimits(4, 2))
	assert.Equal(t, 4, l.Capacity())
	assert.LessOrEqual(t, l.Available(), 4.0)

	for l.TryAcquire() {
	}
	mock.Add(time.Second)
	assert.InDelta(t, 2, l.Available(), 1e-9)

	assert.ErrorIs(t, l.SetLimits(0, 1), ErrInvalidCapacity)
	assert.ErrorIs(t, l.SetLimits(1, 0), ErrInvalidRate)
}

func TestLimiter_AcquireTimesOut(t *testing.T) {
	l, err := New(1, 0.5)
	require.NoError(t, err)
	require.True(t, l.TryAcquire())

	start := time.Now()
	assert.False(t, l.Acquire(30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, uint64(1), l.Stats().Rejected)
}

func TestLimiter_AcquireWaitsForRefill(t *testing.T) {
	l, err := New(1, 100)
	require.NoError(t, err)
	require.True(t, l.TryAcquire())

	assert.True(t, l.Acquire(time.Second))
}

func TestLimiter_PollInterval(t *testing.T) {
	tests := []struct {
		rate float64
		want time.Duration
	}{
		{10000, time.Millisecond},
		{500, 2 * time.Millisecond},
		{100, 10 * time.Millisecond},
		{1, 10 * time.Millisecond},
	}

	for _, tt := range tests {
		l, err := New(1, tt.rate)
		require.NoError(t, err)
		assert.Equal(t, tt.want, l.pollInterval(), "rate %v", tt.rate)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newMockLimiter(t, 100, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if l.TryAcquire() {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, granted)
	assert.Equal(t, Stats{Granted: 100, Rejected: 300}, l.Stats())
}
