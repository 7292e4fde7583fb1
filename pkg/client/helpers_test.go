package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/piscesgamedev/pisces/pkg/client"
	"github.com/piscesgamedev/pisces/pkg/codec"
	"github.com/piscesgamedev/pisces/pkg/route"
	"github.com/piscesgamedev/pisces/pkg/transport"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// recorder captures client events for assertions.
type recorder struct {
	mu       sync.Mutex
	states   []client.StateChangeEvent
	messages []*codec.Message
	errs     []error
}

func (r *recorder) OnStateChange(e client.StateChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, e)
}

func (r *recorder) OnMessage(m *codec.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) States() []client.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]client.State, len(r.states))
	for i, e := range r.states {
		out[i] = e.Current
	}
	return out
}

func (r *recorder) Messages() []*codec.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*codec.Message(nil), r.messages...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type harness struct {
	client  *client.Client
	clock   *clock.Mock
	factory *transport.MockFactory
	events  *recorder
}

func newHarness(t *testing.T, mutate func(*client.Config), opts ...client.Option) *harness {
	t.Helper()

	cfg := client.DefaultConfig()
	cfg.Host = "127.0.0.1"
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		clock:   clock.NewMock(),
		factory: transport.NewMockFactory(),
		events:  &recorder{},
	}
	opts = append([]client.Option{
		client.WithClock(h.clock),
		client.WithChannelFactory(h.factory),
		client.WithEventHandler(h.events),
	}, opts...)

	c, err := client.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	h.client = c
	return h
}

// connect opens the session and returns its channel.
func (h *harness) connect(t *testing.T) *transport.MockChannel {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.client.Connect(ctx))
	require.Equal(t, client.StateConnected, h.client.State())
	return h.factory.Last()
}

// advanceUntil moves the mock clock forward in steps until cond holds.
func (h *harness) advanceUntil(t *testing.T, step time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		h.clock.Add(step)
		return cond()
	}, waitFor, tick)
}

func (h *harness) waitState(t *testing.T, want client.State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.client.State() == want }, waitFor, tick)
}

// lastSent decodes the most recent frame written to ch.
func lastSent(t *testing.T, ch *transport.MockChannel) *codec.Message {
	t.Helper()
	frames := ch.SentFrames()
	require.NotEmpty(t, frames)
	msg, err := codec.Decode(frames[len(frames)-1])
	require.NoError(t, err)
	return msg
}

// reply answers call with data.
func reply(ch *transport.MockChannel, call *client.Call, data []byte) {
	ch.SimulateReceive(codec.Encode(&codec.Message{
		CmdCode: codec.CmdBusiness,
		Route:   call.Route,
		MsgID:   call.MsgID,
		Data:    data,
	}))
}

func heartbeatAck(ch *transport.MockChannel) {
	ch.SimulateReceive(codec.Encode(codec.NewHeartbeat()))
}

func newRequest(r route.ID) *codec.Message {
	return codec.NewRequest(r, nil)
}
