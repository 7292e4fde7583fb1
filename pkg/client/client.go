package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/piscesgamedev/pisces/internal/dedup"
	"github.com/piscesgamedev/pisces/internal/dispatch"
	"github.com/piscesgamedev/pisces/internal/pending"
	"github.com/piscesgamedev/pisces/internal/stats"
	"github.com/piscesgamedev/pisces/pkg/codec"
	"github.com/piscesgamedev/pisces/pkg/lifecycle"
	"github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/ratelimit"
	"github.com/piscesgamedev/pisces/pkg/route"
	"github.com/piscesgamedev/pisces/pkg/transport"
)

type (
	// Stats is a point-in-time copy of the client counters.
	Stats = stats.Snapshot

	// LogEntry is one business message in the message log.
	LogEntry = stats.LogEntry
)

// Client is a game server session. Use New() to create an instance, then
// Connect() to open the connection.
//
// All state is owned by one event-loop goroutine. Public methods post work
// to it and are safe to call from any goroutine, including event handlers.
type Client struct {
	cfg     Config
	id      string
	logger  log.Logger
	clock   clock.Clock
	factory transport.Factory
	handler EventHandler

	lifecycle *lifecycle.DefaultManager
	limiter   *ratelimit.Limiter
	dedup     *dedup.Table
	pending   *pending.Table
	stats     *stats.Stats
	collector *stats.Collector
	ids       codec.IDGenerator
	events    *dispatch.Dispatcher

	mailbox  chan func()
	done     chan struct{}
	loopDone chan struct{}
	closed   atomic.Bool

	// ctx lives until Close and is handed to plugins.
	ctx    context.Context
	cancel context.CancelFunc

	pluginMu    sync.Mutex
	plugins     []Plugin
	started     []Plugin
	pluginsInit bool

	// Owned by the event loop.
	ch          transport.Channel
	gen         uint64
	sup         *supervisor
	sweep       *clock.Ticker
	rateLimitOn bool
	dialing     bool
	dialCancel  context.CancelFunc
	waiters     []chan error
	stopping    bool
}

// New creates a Client with the given configuration.
// The client starts in StateDisconnected; call Connect() to open the session.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Client, error) {
	// Set defaults
	cfg.SetDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Validate module version compatibility
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	// Apply options
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	logger := o.logger
	if z, ok := logger.(*log.ZerologAdapter); ok {
		logger = z.With(log.String("session", id))
	}

	factory := o.factory
	if factory == nil {
		factory = transport.NewFactory(cfg.transportOptions(logger))
	}

	limiter, err := ratelimit.New(cfg.MaxBurstSize, cfg.MaxSendRate, ratelimit.WithClock(o.clock))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:         cfg,
		id:          id,
		logger:      logger,
		clock:       o.clock,
		factory:     factory,
		handler:     o.eventHandler,
		limiter:     limiter,
		dedup:       dedup.New(cfg.EnableRequestDedup, cfg.DedupExcludeRoutes),
		pending:     pending.New(o.clock, logger, cfg.PendingWarnThreshold),
		stats:       stats.New(o.clock),
		events:      dispatch.New(logger),
		mailbox:     make(chan func()),
		done:        make(chan struct{}),
		loopDone:    make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		plugins:     o.plugins,
		sup:         newSupervisor(o.clock, cfg),
		sweep:       o.clock.Ticker(cfg.SweepInterval),
		rateLimitOn: cfg.EnableRateLimit,
	}
	c.lifecycle = lifecycle.NewManager(logger, stateEmitter{c})
	c.collector = stats.NewCollector(c.stats, id, c.pending.Len)

	go c.run()
	return c, nil
}

// ID returns the session identifier used in logs and metrics.
func (c *Client) ID() string {
	return c.id
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// State returns the current connection state.
// Safe to call concurrently from any goroutine.
func (c *Client) State() State {
	return c.lifecycle.State()
}

// Stats returns a snapshot of the session counters.
func (c *Client) Stats() Stats {
	return c.stats.Snapshot()
}

// MessageLog returns the most recent business messages, newest first.
func (c *Client) MessageLog() []LogEntry {
	return c.stats.Log()
}

// ResetStats zeroes the counters and clears the message log.
func (c *Client) ResetStats() {
	c.stats.Reset()
}

// RateLimiterStats returns the limiter's grant and rejection counts.
func (c *Client) RateLimiterStats() ratelimit.Stats {
	return c.limiter.Stats()
}

// Collector exposes the session counters as Prometheus metrics.
func (c *Client) Collector() prometheus.Collector {
	return c.collector
}

// Connect opens the session and blocks until it is Connected, the attempt
// fails, or ctx is done. Plugins are initialized on the first call.
// A failed attempt leaves the client Disconnected without scheduling a
// reconnect. Calling Connect while Reconnecting retries immediately.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.initPlugins(); err != nil {
		return err
	}

	result := make(chan error, 1)
	if err := c.do(ctx, func() { c.connect(ctx, result) }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the connection and stops reconnecting. Pending
// requests fail with ErrConnectionLost. The client may Connect again.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.do(ctx, c.disconnect)
}

// Close tears the session down for good. Pending requests fail with
// ErrClientClosed, plugins are shut down in reverse order, and every later
// call fails fast. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.do(context.Background(), c.shutdown)
	<-c.loopDone
	c.cancel()

	err := c.shutdownPlugins()
	c.events.Close()
	return err
}

// SendAsync hands msg to the session and returns immediately. On
// ResultSuccess the returned Call resolves with the response. Every other
// result means nothing was sent.
func (c *Client) SendAsync(msg *codec.Message) (*Call, SendResult) {
	if c.closed.Load() {
		return nil, ResultClientClosed
	}
	var (
		call *Call
		res  SendResult
	)
	if err := c.do(context.Background(), func() { call, res = c.send(msg) }); err != nil {
		return nil, ResultClientClosed
	}
	return call, res
}

// Send sends msg and waits for its response. RequestTimeout applies when
// ctx has no deadline. A response with a non-zero status is returned
// together with its *codec.ResponseError.
func (c *Client) Send(ctx context.Context, msg *codec.Message) (*codec.Message, error) {
	call, res := c.SendAsync(msg)
	if res != ResultSuccess {
		return nil, res.Err()
	}
	return call.wait(ctx, c.cfg.RequestTimeout)
}

// Request sends payload on route r and waits for the response.
func (c *Client) Request(ctx context.Context, r route.ID, payload []byte) (*codec.Message, error) {
	return c.Send(ctx, codec.NewRequest(r, payload))
}

// Notify sends payload on route r without expecting a response. It is
// rate limited but not deduplicated.
func (c *Client) Notify(r route.ID, payload []byte) SendResult {
	if c.closed.Load() {
		return ResultClientClosed
	}
	var res SendResult
	if err := c.do(context.Background(), func() { res = c.notify(codec.NewRequest(r, payload)) }); err != nil {
		return ResultClientClosed
	}
	return res
}

// SetRateLimit enables or disables the outbound rate limiter and replaces
// its rate and burst.
func (c *Client) SetRateLimit(enabled bool, maxRate float64, burst int) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	var err error
	if derr := c.do(context.Background(), func() {
		if err = c.limiter.SetLimits(burst, maxRate); err != nil {
			return
		}
		c.rateLimitOn = enabled
		c.logger.Info("rate limit updated",
			log.Bool("enabled", enabled),
			log.Float64("rate", maxRate),
			log.Int("burst", burst),
		)
	}); derr != nil {
		return derr
	}
	return err
}

// SetDedupPolicy enables or disables route deduplication and replaces the
// excluded routes. Routes already locked stay locked until answered.
func (c *Client) SetDedupPolicy(enabled bool, exclude []route.ID) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.do(context.Background(), func() {
		c.dedup.SetPolicy(enabled, exclude)
		c.logger.Info("dedup policy updated",
			log.Bool("enabled", enabled),
			log.Int("excluded", len(exclude)),
		)
	})
}

var _ Tuner = (*Client)(nil)

// initPlugins initializes plugins once. It runs on the caller's goroutine
// because plugins may call back into the client.
func (c *Client) initPlugins() error {
	c.pluginMu.Lock()
	defer c.pluginMu.Unlock()

	if c.pluginsInit {
		return nil
	}
	cfg := PluginConfig{
		SessionID: c.id,
		Logger:    c.logger,
		Tuner:     c,
	}
	for _, p := range c.plugins {
		if err := p.Initialize(c.ctx, cfg); err != nil {
			c.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			_ = c.shutdownPluginsLocked()
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		c.started = append(c.started, p)
		c.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}
	c.pluginsInit = true
	return nil
}

func (c *Client) shutdownPlugins() error {
	c.pluginMu.Lock()
	defer c.pluginMu.Unlock()
	return c.shutdownPluginsLocked()
}

// shutdownPluginsLocked shuts down started plugins in reverse order.
func (c *Client) shutdownPluginsLocked() error {
	var errs error
	shutdownCtx := context.Background()
	for i := len(c.started) - 1; i >= 0; i-- {
		p := c.started[i]
		if err := p.Shutdown(shutdownCtx); err != nil {
			c.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			errs = multierr.Append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
		} else {
			c.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
	c.started = nil
	return errs
}

// stateEmitter forwards lifecycle transitions to the event handler.
type stateEmitter struct {
	c *Client
}

func (e stateEmitter) OnStateChange(previous, current lifecycle.State, reason string) {
	h := e.c.handler
	if h == nil {
		return
	}
	event := StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
		Time:     e.c.clock.Now(),
	}
	e.c.events.Post(func() { h.OnStateChange(event) })
}
