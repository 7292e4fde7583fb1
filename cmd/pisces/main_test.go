package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piscesgamedev/pisces/internal/cliconfig"
	"github.com/piscesgamedev/pisces/pkg/client"
	"github.com/piscesgamedev/pisces/pkg/codec"
	"github.com/piscesgamedev/pisces/pkg/route"
	"github.com/piscesgamedev/pisces/pkg/transport"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// syncBuffer is written by run's printer and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// sentWith returns the first frame on ch matching keep.
func sentWith(ch *transport.MockChannel, keep func(*codec.Message) bool) *codec.Message {
	for _, f := range ch.SentFrames() {
		msg, err := codec.Decode(f)
		if err == nil && keep(msg) {
			return msg
		}
	}
	return nil
}

func TestRun_Session(t *testing.T) {
	t.Cleanup(route.Clear)

	cfg := cliconfig.DefaultConfig()
	cfg.Routes = map[string]string{"1-5": "login"}

	factory := transport.NewMockFactory()
	in, input := io.Pipe()
	t.Cleanup(func() { _ = input.Close() })
	out := &syncBuffer{}

	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), cfg, nil, zerolog.Nop(), in, out, client.WithChannelFactory(factory))
	}()

	require.Eventually(t, func() bool {
		ch := factory.Last()
		return ch != nil && ch.IsConnected()
	}, waitFor, tick)
	ch := factory.Last()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "-> Connected") }, waitFor, tick)

	write := func(line string) {
		t.Helper()
		_, err := io.WriteString(input, line+"\n")
		require.NoError(t, err)
	}

	// Request and response, printed with the configured route name.
	write("1 5 ping")
	var req *codec.Message
	require.Eventually(t, func() bool {
		req = sentWith(ch, func(m *codec.Message) bool { return m.MsgID != 0 })
		return req != nil
	}, waitFor, tick)
	assert.Equal(t, route.Merge(1, 5), req.Route)
	assert.Equal(t, []byte("ping"), req.Data)

	ch.SimulateReceive(codec.Encode(&codec.Message{
		CmdCode: codec.CmdBusiness,
		Route:   req.Route,
		MsgID:   req.MsgID,
		Data:    []byte("pong"),
	}))
	want := fmt.Sprintf("> 1-5-65541(login) #%d \"pong\"", req.MsgID)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), want) }, waitFor, tick)

	// Notify goes out with message id 0.
	write("notify 2 1 hi")
	require.Eventually(t, func() bool {
		return sentWith(ch, func(m *codec.Message) bool {
			return m.Route == route.Merge(2, 1) && m.MsgID == 0 && string(m.Data) == "hi"
		}) != nil
	}, waitFor, tick)

	// Broadcasts are printed as they arrive.
	ch.SimulateReceive(codec.Encode(codec.NewRequest(route.Merge(9, 9), []byte("news"))))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `< broadcast 9-9-589833 "news"`)
	}, waitFor, tick)

	write("stats")
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "= sent=2 received=2") }, waitFor, tick)

	write("1 x")
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "! sub command:") }, waitFor, tick)

	write("quit")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("run did not return after quit")
	}
	assert.False(t, ch.IsConnected())
}

func TestRun_EOFDisconnects(t *testing.T) {
	factory := transport.NewMockFactory()
	out := &syncBuffer{}

	err := run(context.Background(), cliconfig.DefaultConfig(), nil, zerolog.Nop(),
		strings.NewReader("# nothing to send\n"), out, client.WithChannelFactory(factory))
	require.NoError(t, err)
	require.Len(t, factory.Channels(), 1)
	assert.False(t, factory.Last().IsConnected())
}

func TestRun_ConnectFailure(t *testing.T) {
	factory := transport.NewMockFactory()
	factory.FailNext(1, transport.ErrNotConnected)

	err := run(context.Background(), cliconfig.DefaultConfig(), nil, zerolog.Nop(),
		strings.NewReader(""), io.Discard, client.WithChannelFactory(factory))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
}

func TestRun_RejectsBadRouteNames(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	cfg.Routes = map[string]string{"not-a-route": "x"}

	err := run(context.Background(), cfg, nil, zerolog.Nop(),
		strings.NewReader(""), io.Discard, client.WithChannelFactory(transport.NewMockFactory()))
	require.Error(t, err)
}
