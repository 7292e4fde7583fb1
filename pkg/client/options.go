package client

import (
	"github.com/benbjohnson/clock"

	"github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/transport"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// Option configures optional behavior of a Client.
type Option func(*options)

// options holds the optional configuration for a Client instance.
type options struct {
	logger       log.Logger
	eventHandler EventHandler
	clock        clock.Clock
	factory      transport.Factory
	plugins      []Plugin
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		clock:  clock.New(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler sets a handler for client events.
// Events are delivered in order on a dedicated goroutine, so a handler may
// call back into the client. If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithClock replaces the wall clock that drives heartbeats, reconnects,
// request timeouts, and the rate limiter. Tests pass a clock.Mock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithChannelFactory replaces the transport drivers. Each connection
// attempt asks the factory for a fresh channel.
func WithChannelFactory(f transport.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithPlugin registers a plugin to be initialized on the first Connect.
// Plugins are initialized in registration order and shut down in reverse
// order by Close.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
