package client

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/piscesgamedev/pisces/pkg/lifecycle"
)

// supervisor tracks heartbeat misses and reconnect attempts. It is owned by
// the event loop and never touched from other goroutines.
type supervisor struct {
	clock clock.Clock

	interval  time.Duration
	maxMisses int
	misses    int
	heartbeat *clock.Ticker

	maxAttempts int
	attempts    int
	backoff     *lifecycle.Backoff
	reconnect   *clock.Timer
}

func newSupervisor(clk clock.Clock, cfg Config) *supervisor {
	return &supervisor{
		clock:       clk,
		interval:    cfg.HeartbeatInterval,
		maxMisses:   cfg.HeartbeatTimeoutCount,
		maxAttempts: cfg.MaxReconnectCount,
		backoff:     lifecycle.NewBackoff(cfg.ReconnectInterval, cfg.MaxReconnectInterval),
	}
}

// heartbeatC returns the heartbeat tick channel, or nil when stopped.
func (s *supervisor) heartbeatC() <-chan time.Time {
	if s.heartbeat == nil {
		return nil
	}
	return s.heartbeat.C
}

// reconnectC returns the reconnect timer channel, or nil when idle.
func (s *supervisor) reconnectC() <-chan time.Time {
	if s.reconnect == nil {
		return nil
	}
	return s.reconnect.C
}

// connected resets both counters and starts the heartbeat.
func (s *supervisor) connected() {
	s.stopReconnect()
	s.attempts = 0
	s.backoff.Reset()
	s.stopHeartbeat()
	s.misses = 0
	s.heartbeat = s.clock.Ticker(s.interval)
}

func (s *supervisor) stopHeartbeat() {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
}

// beat records a sent heartbeat and reports whether the connection is dead.
func (s *supervisor) beat() bool {
	s.misses++
	return s.misses >= s.maxMisses
}

// ack records a heartbeat acknowledgment.
func (s *supervisor) ack() {
	s.misses = 0
}

// scheduleReconnect arms the reconnect timer and returns its delay.
func (s *supervisor) scheduleReconnect() time.Duration {
	s.stopReconnect()
	d := s.backoff.Next()
	s.reconnect = s.clock.Timer(d)
	return d
}

// reconnectFired clears the timer after its channel delivered.
func (s *supervisor) reconnectFired() {
	s.reconnect = nil
}

func (s *supervisor) stopReconnect() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

// attemptFailed counts a failed reconnect and reports whether the limit
// has been reached. A limit of zero never runs out.
func (s *supervisor) attemptFailed() bool {
	s.attempts++
	return s.maxAttempts > 0 && s.attempts >= s.maxAttempts
}

// stop cancels every timer.
func (s *supervisor) stop() {
	s.stopHeartbeat()
	s.stopReconnect()
}
