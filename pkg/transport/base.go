package transport

import (
	"sync"

	"github.com/piscesgamedev/pisces/pkg/log"
)

// link is the runtime state of one open connection.
type link struct {
	sendq chan []byte
	stop  chan struct{}
	once  sync.Once
	close func() error
}

// base implements the parts of Channel shared by every driver: handler
// storage, the send queue, and the read and write loops.
type base struct {
	self Channel
	typ  Type
	opts Options

	mu       sync.Mutex
	handlers Handlers
	current  *link
}

func (b *base) init(self Channel, t Type, opts Options) {
	opts.setDefaults()
	b.self = self
	b.typ = t
	b.opts = opts
}

// Type returns the channel protocol.
func (b *base) Type() Type { return b.typ }

// SetHandlers replaces the event handlers.
func (b *base) SetHandlers(h Handlers) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = h
}

func (b *base) getHandlers() Handlers {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers
}

// IsConnected reports whether the connection is open.
func (b *base) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil
}

func (b *base) checkIdle() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		return ErrAlreadyConnected
	}
	return nil
}

// Send queues a frame for the writer goroutine.
func (b *base) Send(data []byte) error {
	if len(data) > b.opts.MaxFrameSize {
		return ErrFrameTooLarge
	}

	b.mu.Lock()
	l := b.current
	b.mu.Unlock()
	if l == nil {
		return ErrNotConnected
	}

	select {
	case <-l.stop:
		return ErrNotConnected
	case l.sendq <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Disconnect closes the current connection without notifying OnDisconnected.
func (b *base) Disconnect() error {
	b.mu.Lock()
	l := b.current
	b.mu.Unlock()
	if l == nil {
		return nil
	}
	return b.shutdown(l, nil, false)
}

// start installs a new link and launches its loops. read returns the next
// inbound frame; a nil frame with a nil error is skipped.
func (b *base) start(closeConn func() error, write func([]byte) error, read func() ([]byte, error)) {
	l := &link{
		sendq: make(chan []byte, b.opts.SendQueueSize),
		stop:  make(chan struct{}),
		close: closeConn,
	}

	b.mu.Lock()
	b.current = l
	b.mu.Unlock()

	go b.writeLoop(l, write)
	go b.readLoop(l, read)
}

func (b *base) writeLoop(l *link, write func([]byte) error) {
	for {
		select {
		case <-l.stop:
			return
		case data := <-l.sendq:
			if err := write(data); err != nil {
				_ = b.shutdown(l, err, true)
				return
			}
			if h := b.getHandlers(); h.OnSend != nil {
				h.OnSend(b.self)
			}
		}
	}
}

func (b *base) readLoop(l *link, read func() ([]byte, error)) {
	for {
		data, err := read()
		if err != nil {
			_ = b.shutdown(l, err, true)
			return
		}
		if data == nil {
			continue
		}
		if h := b.getHandlers(); h.OnReceive != nil {
			h.OnReceive(b.self, data)
		}
	}
}

// shutdown tears the link down once. Remote failures are reported through
// OnDisconnected; errors caused by a local close are not.
func (b *base) shutdown(l *link, cause error, remote bool) error {
	var closeErr error
	first := false
	l.once.Do(func() {
		first = true
		close(l.stop)

		b.mu.Lock()
		if b.current == l {
			b.current = nil
		}
		b.mu.Unlock()

		closeErr = l.close()
	})
	if !first || !remote {
		return closeErr
	}

	b.opts.Logger.Debug("channel closed",
		log.String("type", b.typ.String()),
		log.Err(cause),
	)
	if h := b.getHandlers(); h.OnDisconnected != nil {
		h.OnDisconnected(b.self, cause)
	}
	return closeErr
}
