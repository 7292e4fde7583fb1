package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/piscesgamedev/pisces/pkg/log"
)

// Channel errors.
var (
	ErrNotConnected     = errors.New("transport: not connected")
	ErrAlreadyConnected = errors.New("transport: already connected")
	ErrQueueFull        = errors.New("transport: send queue full")
	ErrFrameTooLarge    = errors.New("transport: frame too large")
	ErrUnknownType      = errors.New("transport: unknown channel type")
)

// Type selects the transport protocol.
type Type int

const (
	// Stream is a length-prefixed TCP connection.
	Stream Type = iota
	// Datagram is a connected UDP socket, one frame per datagram.
	Datagram
	// Message is a WebSocket connection carrying binary messages.
	Message
)

// String returns the configuration name of the type.
func (t Type) String() string {
	switch t {
	case Stream:
		return "stream"
	case Datagram:
		return "datagram"
	case Message:
		return "message"
	default:
		return "unknown"
	}
}

// ParseType accepts the configuration name or the protocol name
// (tcp, udp, websocket).
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stream", "tcp", "socket":
		return Stream, nil
	case "datagram", "udp":
		return Datagram, nil
	case "message", "websocket", "ws":
		return Message, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Channel is one connection to the server over a single protocol.
//
// Send only queues the frame; write failures surface later through
// OnDisconnected. Handlers run on the channel's own goroutines.
type Channel interface {
	// Type returns the channel protocol.
	Type() Type

	// Connect dials the server and starts the read and write loops.
	// It blocks until the connection is established or ctx is done.
	Connect(ctx context.Context, host string, port int) error

	// Disconnect closes the connection. OnDisconnected is not called for
	// a local disconnect.
	Disconnect() error

	// Send queues a complete frame for writing.
	Send(data []byte) error

	// IsConnected reports whether the connection is open.
	IsConnected() bool

	// SetHandlers replaces the event handlers.
	SetHandlers(h Handlers)
}

// Handlers receive channel events. Nil handlers are skipped.
type Handlers struct {
	// OnSend is called after a frame has been written.
	OnSend func(ch Channel)

	// OnReceive is called with each complete inbound frame. The slice is
	// owned by the handler.
	OnReceive func(ch Channel, data []byte)

	// OnDisconnected is called once when the connection fails or the peer
	// closes it.
	OnDisconnected func(ch Channel, err error)
}

// Options tunes the channel drivers.
type Options struct {
	// ReceiveBufferSize sizes socket and read buffers. Also the largest
	// datagram accepted. Default: 64 KiB
	ReceiveBufferSize int

	// SendBufferSize sizes socket and write buffers. Default: 64 KiB
	SendBufferSize int

	// SendQueueSize is the number of frames that may wait for the writer.
	// Default: 256
	SendQueueSize int

	// MaxFrameSize bounds stream and message frames. Default: 1 MiB
	MaxFrameSize int

	// WriteTimeout bounds a single write. Zero disables it. Default: 10s
	WriteTimeout time.Duration

	// WebSocketPath is appended to ws://host:port. Default: ""
	WebSocketPath string

	// Logger receives driver diagnostics. Default: no-op
	Logger log.Logger
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		ReceiveBufferSize: 64 << 10,
		SendBufferSize:    64 << 10,
		SendQueueSize:     256,
		MaxFrameSize:      1 << 20,
		WriteTimeout:      10 * time.Second,
		Logger:            log.NewNoopLogger(),
	}
}

func (o *Options) setDefaults() {
	d := DefaultOptions()
	if o.ReceiveBufferSize <= 0 {
		o.ReceiveBufferSize = d.ReceiveBufferSize
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = d.SendBufferSize
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = d.SendQueueSize
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = d.MaxFrameSize
	}
	if o.WriteTimeout < 0 {
		o.WriteTimeout = 0
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
}

// Factory creates a fresh channel for every connection attempt.
type Factory interface {
	NewChannel(t Type) (Channel, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(t Type) (Channel, error)

// NewChannel calls f.
func (f FactoryFunc) NewChannel(t Type) (Channel, error) { return f(t) }

// New creates a channel of the given type.
func New(t Type, opts Options) (Channel, error) {
	switch t {
	case Stream:
		return NewTCPChannel(opts), nil
	case Datagram:
		return NewUDPChannel(opts), nil
	case Message:
		return NewWSChannel(opts), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
}

// NewFactory returns a Factory that builds the standard drivers with opts.
func NewFactory(opts Options) Factory {
	return FactoryFunc(func(t Type) (Channel, error) {
		return New(t, opts)
	})
}
