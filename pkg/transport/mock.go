package transport

import (
	"context"
	"sync"
)

// MockChannel is an in-memory Channel for tests. Frames passed to Send are
// recorded; inbound traffic and failures are injected with the Simulate
// helpers.
type MockChannel struct {
	typ       Type
	mu        sync.Mutex
	handlers  Handlers
	connected bool
	sent      [][]byte

	// ConnectErr, when set, is returned by Connect.
	ConnectErr error
	// SendErr, when set, is returned by Send.
	SendErr error

	host string
	port int
}

// NewMockChannel creates a disconnected mock channel.
func NewMockChannel(t Type) *MockChannel {
	return &MockChannel{typ: t}
}

// Type returns the configured type.
func (m *MockChannel) Type() Type { return m.typ }

// Connect marks the channel connected unless ConnectErr is set.
func (m *MockChannel) Connect(ctx context.Context, host string, port int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	m.host, m.port = host, port
	return nil
}

// Disconnect marks the channel disconnected.
func (m *MockChannel) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Send records the frame.
func (m *MockChannel) Send(data []byte) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if m.SendErr != nil {
		err := m.SendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	h := m.handlers
	m.mu.Unlock()

	if h.OnSend != nil {
		h.OnSend(m)
	}
	return nil
}

// IsConnected reports whether Connect succeeded and no disconnect followed.
func (m *MockChannel) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetHandlers replaces the event handlers.
func (m *MockChannel) SetHandlers(h Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

// --- Test helpers ---

// SimulateReceive delivers an inbound frame.
func (m *MockChannel) SimulateReceive(data []byte) {
	m.mu.Lock()
	h := m.handlers
	m.mu.Unlock()
	if h.OnReceive != nil {
		h.OnReceive(m, data)
	}
}

// SimulateDisconnect drops the connection as if the peer closed it.
func (m *MockChannel) SimulateDisconnect(err error) {
	m.mu.Lock()
	m.connected = false
	h := m.handlers
	m.mu.Unlock()
	if h.OnDisconnected != nil {
		h.OnDisconnected(m, err)
	}
}

// SetSendErr changes the error returned by Send.
func (m *MockChannel) SetSendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendErr = err
}

// SentFrames returns copies of every frame passed to Send.
func (m *MockChannel) SentFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Addr returns the host and port passed to the last successful Connect.
func (m *MockChannel) Addr() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host, m.port
}

var _ Channel = (*MockChannel)(nil)

// MockFactory hands out MockChannels and keeps every one it created.
type MockFactory struct {
	mu       sync.Mutex
	channels []*MockChannel
	failures int
	err      error
}

// NewMockFactory creates a factory whose channels connect successfully.
func NewMockFactory() *MockFactory {
	return &MockFactory{}
}

// FailNext makes the next n channels fail Connect with err.
func (f *MockFactory) FailNext(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
	f.err = err
}

// NewChannel implements Factory.
func (f *MockFactory) NewChannel(t Type) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := NewMockChannel(t)
	if f.failures > 0 {
		ch.ConnectErr = f.err
		f.failures--
	}
	f.channels = append(f.channels, ch)
	return ch, nil
}

// Channels returns every channel created so far.
func (f *MockFactory) Channels() []*MockChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockChannel(nil), f.channels...)
}

// Last returns the most recently created channel, or nil.
func (f *MockFactory) Last() *MockChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.channels) == 0 {
		return nil
	}
	return f.channels[len(f.channels)-1]
}

var _ Factory = (*MockFactory)(nil)
