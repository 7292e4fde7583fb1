package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// headerSize is the length prefix of a stream frame.
const headerSize = 4

// TCPChannel frames messages over TCP with a 4-byte big-endian length prefix.
type TCPChannel struct {
	base
}

// NewTCPChannel creates a disconnected stream channel.
func NewTCPChannel(opts Options) *TCPChannel {
	c := &TCPChannel{}
	c.base.init(c, Stream, opts)
	return c
}

// Connect dials host:port over TCP.
func (c *TCPChannel) Connect(ctx context.Context, host string, port int) error {
	if err := c.checkIdle(); err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("dial tcp: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetReadBuffer(c.opts.ReceiveBufferSize)
		_ = tc.SetWriteBuffer(c.opts.SendBufferSize)
	}

	r := bufio.NewReaderSize(conn, c.opts.ReceiveBufferSize)
	c.start(conn.Close, c.writer(conn), c.reader(r))
	return nil
}

func (c *TCPChannel) writer(conn net.Conn) func([]byte) error {
	return func(data []byte) error {
		buf := make([]byte, headerSize+len(data))
		binary.BigEndian.PutUint32(buf, uint32(len(data)))
		copy(buf[headerSize:], data)

		if c.opts.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		}
		_, err := conn.Write(buf)
		return err
	}
}

func (c *TCPChannel) reader(r io.Reader) func() ([]byte, error) {
	var header [headerSize]byte
	return func() ([]byte, error) {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(header[:])
		if int64(n) > int64(c.opts.MaxFrameSize) {
			return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		return data, nil
	}
}

var _ Channel = (*TCPChannel)(nil)
