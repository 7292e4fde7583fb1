// Package stats records session telemetry. Nothing here influences
// protocol decisions.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/deque"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/piscesgamedev/pisces/pkg/route"
)

// Limits on retained telemetry.
const (
	DefaultLogCapacity      = 200
	DefaultInflightCapacity = 1000
)

// Direction tells whether a logged message went out or came in.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// String returns a human-readable representation of the direction.
func (d Direction) String() string {
	switch d {
	case Outbound:
		return "Outbound"
	case Inbound:
		return "Inbound"
	default:
		return "Unknown"
	}
}

// LogEntry is one business message in the message log.
type LogEntry struct {
	Time      time.Time
	Direction Direction
	Route     route.ID
	MsgID     uint32
	Size      int
	Broadcast bool
	Status    int32
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	MessagesSent       uint64
	MessagesReceived   uint64
	BytesSent          uint64
	BytesReceived      uint64
	RateLimited        uint64
	SendFailed         uint64
	Reconnects         uint64
	Timeouts           uint64
	HeartbeatsSent     uint64
	HeartbeatsReceived uint64

	ConnectedAt       time.Time
	ConnectedFor      time.Duration
	LastHeartbeatSent time.Time
	LastHeartbeatRecv time.Time

	AverageLatency time.Duration
	InFlight       int

	SendRate    float64
	ReceiveRate float64
}

// Stats aggregates counters for one client. It is safe for concurrent use.
type Stats struct {
	clock clock.Clock

	sent, received           atomic.Uint64
	bytesSent, bytesReceived atomic.Uint64
	rateLimited, sendFailed  atomic.Uint64
	reconnects, timeouts     atomic.Uint64
	hbSent, hbReceived       atomic.Uint64

	mu                sync.Mutex
	connectedAt       time.Time
	lastHeartbeatSent time.Time
	lastHeartbeatRecv time.Time
	latencyTotal      time.Duration
	latencyCount      uint64
	inflight          *lru.Cache[uint32, time.Time]
	entries           deque.Deque[LogEntry]
	logCap            int

	rateAt             time.Time
	rateSent, rateRecv uint64
	sendRate, recvRate float64
}

// New creates an empty recorder.
func New(clk clock.Clock) *Stats {
	if clk == nil {
		clk = clock.New()
	}
	inflight, err := lru.New[uint32, time.Time](DefaultInflightCapacity)
	if err != nil {
		panic(fmt.Sprintf("stats: %v", err))
	}
	return &Stats{
		clock:    clk,
		inflight: inflight,
		logCap:   DefaultLogCapacity,
		rateAt:   clk.Now(),
	}
}

// RecordSent counts an outbound business frame and logs it.
func (s *Stats) RecordSent(r route.ID, msgID uint32, size int) {
	s.sent.Add(1)
	s.bytesSent.Add(uint64(size))
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if msgID != 0 {
		s.inflight.Add(msgID, now)
	}
	s.appendLocked(LogEntry{Time: now, Direction: Outbound, Route: r, MsgID: msgID, Size: size})
}

// RecordReceived counts an inbound business frame, logs it, and records the
// response latency when it answers a tracked request.
func (s *Stats) RecordReceived(r route.ID, msgID uint32, size int, status int32) {
	s.received.Add(1)
	s.bytesReceived.Add(uint64(size))
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if msgID != 0 {
		if started, ok := s.inflight.Peek(msgID); ok {
			s.inflight.Remove(msgID)
			s.latencyTotal += now.Sub(started)
			s.latencyCount++
		}
	}
	s.appendLocked(LogEntry{Time: now, Direction: Inbound, Route: r, MsgID: msgID, Size: size, Broadcast: msgID == 0, Status: status})
}

// Forget stops latency tracking for a request that ended without a response.
func (s *Stats) Forget(msgID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight.Remove(msgID)
}

func (s *Stats) appendLocked(e LogEntry) {
	s.entries.PushFront(e)
	for s.entries.Len() > s.logCap {
		s.entries.PopBack()
	}
}

// RecordRateLimited counts a send rejected by the rate limiter.
func (s *Stats) RecordRateLimited() { s.rateLimited.Add(1) }

// RecordSendFailed counts a frame the transport refused.
func (s *Stats) RecordSendFailed() { s.sendFailed.Add(1) }

// RecordTimeout counts a request that expired.
func (s *Stats) RecordTimeout() { s.timeouts.Add(1) }

// RecordReconnect counts a successful reconnection.
func (s *Stats) RecordReconnect() { s.reconnects.Add(1) }

// RecordHeartbeatSent counts an outbound heartbeat.
func (s *Stats) RecordHeartbeatSent() {
	s.hbSent.Add(1)
	s.mu.Lock()
	s.lastHeartbeatSent = s.clock.Now()
	s.mu.Unlock()
}

// RecordHeartbeatReceived counts a heartbeat acknowledgment.
func (s *Stats) RecordHeartbeatReceived() {
	s.hbReceived.Add(1)
	s.mu.Lock()
	s.lastHeartbeatRecv = s.clock.Now()
	s.mu.Unlock()
}

// RecordConnected marks the start of a connection.
func (s *Stats) RecordConnected() {
	s.mu.Lock()
	s.connectedAt = s.clock.Now()
	s.mu.Unlock()
}

// RecordDisconnected marks the end of a connection and drops latency tracking.
func (s *Stats) RecordDisconnected() {
	s.mu.Lock()
	s.connectedAt = time.Time{}
	s.inflight.Purge()
	s.mu.Unlock()
}

// UpdateRates recomputes the per-second send and receive rates over the
// interval since the previous call.
func (s *Stats) UpdateRates() {
	now := s.clock.Now()
	sent, recv := s.sent.Load(), s.received.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := now.Sub(s.rateAt).Seconds()
	if elapsed <= 0 {
		return
	}
	s.sendRate = float64(sent-s.rateSent) / elapsed
	s.recvRate = float64(recv-s.rateRecv) / elapsed
	s.rateAt, s.rateSent, s.rateRecv = now, sent, recv
}

// Snapshot returns a copy of every counter.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		MessagesSent:       s.sent.Load(),
		MessagesReceived:   s.received.Load(),
		BytesSent:          s.bytesSent.Load(),
		BytesReceived:      s.bytesReceived.Load(),
		RateLimited:        s.rateLimited.Load(),
		SendFailed:         s.sendFailed.Load(),
		Reconnects:         s.reconnects.Load(),
		Timeouts:           s.timeouts.Load(),
		HeartbeatsSent:     s.hbSent.Load(),
		HeartbeatsReceived: s.hbReceived.Load(),
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ConnectedAt = s.connectedAt
	if !s.connectedAt.IsZero() {
		snap.ConnectedFor = now.Sub(s.connectedAt)
	}
	snap.LastHeartbeatSent = s.lastHeartbeatSent
	snap.LastHeartbeatRecv = s.lastHeartbeatRecv
	if s.latencyCount > 0 {
		snap.AverageLatency = s.latencyTotal / time.Duration(s.latencyCount)
	}
	snap.InFlight = s.inflight.Len()
	snap.SendRate = s.sendRate
	snap.ReceiveRate = s.recvRate
	return snap
}

// Log returns the message log, newest first.
func (s *Stats) Log() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, s.entries.Len())
	for i := range out {
		out[i] = s.entries.At(i)
	}
	return out
}

// Reset zeroes every counter and clears the log.
func (s *Stats) Reset() {
	for _, c := range []*atomic.Uint64{
		&s.sent, &s.received, &s.bytesSent, &s.bytesReceived,
		&s.rateLimited, &s.sendFailed, &s.reconnects, &s.timeouts,
		&s.hbSent, &s.hbReceived,
	} {
		c.Store(0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeatSent = time.Time{}
	s.lastHeartbeatRecv = time.Time{}
	s.latencyTotal = 0
	s.latencyCount = 0
	s.inflight.Purge()
	s.entries.Clear()
	s.rateAt = s.clock.Now()
	s.rateSent, s.rateRecv = 0, 0
	s.sendRate, s.recvRate = 0, 0
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit && exp < 3; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGT"[exp])
}
