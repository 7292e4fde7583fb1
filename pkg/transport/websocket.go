package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/piscesgamedev/pisces/pkg/log"
)

// WSChannel carries frames as binary WebSocket messages. Text messages are
// ignored.
type WSChannel struct {
	base
}

// NewWSChannel creates a disconnected message channel.
func NewWSChannel(opts Options) *WSChannel {
	c := &WSChannel{}
	c.base.init(c, Message, opts)
	return c
}

// URL returns the endpoint for host and port. A host that already starts
// with ws:// or wss:// is used as is.
func (c *WSChannel) URL(host string, port int) string {
	lower := strings.ToLower(host)
	if strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://") {
		return host
	}
	path := c.opts.WebSocketPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + path
}

// Connect performs the WebSocket handshake.
func (c *WSChannel) Connect(ctx context.Context, host string, port int) error {
	if err := c.checkIdle(); err != nil {
		return err
	}

	dialer := websocket.Dialer{
		Proxy:           websocket.DefaultDialer.Proxy,
		ReadBufferSize:  c.opts.ReceiveBufferSize,
		WriteBufferSize: c.opts.SendBufferSize,
	}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.HandshakeTimeout = time.Until(deadline)
	}

	url := c.URL(host, port)
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial websocket %s: %w", url, err)
	}
	conn.SetReadLimit(int64(c.opts.MaxFrameSize))

	read := func() ([]byte, error) {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.BinaryMessage {
			c.opts.Logger.Warn("ignoring non-binary websocket message", log.Int("type", typ))
			return nil, nil
		}
		return data, nil
	}
	write := func(data []byte) error {
		if c.opts.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		}
		return conn.WriteMessage(websocket.BinaryMessage, data)
	}
	closeConn := func() error {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return conn.Close()
	}

	c.start(closeConn, write, read)
	return nil
}

var _ Channel = (*WSChannel)(nil)
