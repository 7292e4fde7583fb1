package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// UDPChannel sends one frame per datagram over a connected UDP socket.
// Connect succeeds as soon as the socket is bound; liveness is left to the
// session heartbeat.
type UDPChannel struct {
	base
}

// NewUDPChannel creates a disconnected datagram channel.
func NewUDPChannel(opts Options) *UDPChannel {
	c := &UDPChannel{}
	c.base.init(c, Datagram, opts)
	return c
}

// Connect binds a UDP socket to host:port.
func (c *UDPChannel) Connect(ctx context.Context, host string, port int) error {
	if err := c.checkIdle(); err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("dial udp: %w", err)
	}
	if uc, ok := conn.(*net.UDPConn); ok {
		_ = uc.SetReadBuffer(c.opts.ReceiveBufferSize)
		_ = uc.SetWriteBuffer(c.opts.SendBufferSize)
	}

	buf := make([]byte, c.opts.ReceiveBufferSize)
	read := func() ([]byte, error) {
		n, err := conn.Read(buf)
		if err != nil {
			return nil, err
		}
		// Copy data (buf will be reused)
		data := make([]byte, n)
		copy(data, buf[:n])
		return data, nil
	}
	write := func(data []byte) error {
		if c.opts.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		}
		_, err := conn.Write(data)
		return err
	}

	c.start(conn.Close, write, read)
	return nil
}

// Send queues a datagram. Frames larger than the receive buffer are
// rejected because the peer could not read them whole either.
func (c *UDPChannel) Send(data []byte) error {
	if len(data) > c.opts.ReceiveBufferSize {
		return ErrFrameTooLarge
	}
	return c.base.Send(data)
}

var _ Channel = (*UDPChannel)(nil)
