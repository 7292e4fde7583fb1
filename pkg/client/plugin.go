package client

import (
	"context"

	"github.com/piscesgamedev/pisces/pkg/route"
)

// Plugin extends a Client with optional behavior.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize is called once, on the first Connect. The context is
	// cancelled when the client closes.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called by Close.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on initialization.
type PluginConfig struct {
	// SessionID identifies the client in logs and metrics.
	SessionID string

	// Logger is the client's logger.
	Logger Logger

	// Tuner applies runtime changes to the running client.
	Tuner Tuner
}

// Tuner exposes the settings that may change while a client runs.
type Tuner interface {
	// SetRateLimit enables or disables the outbound rate limiter and
	// replaces its rate and burst.
	SetRateLimit(enabled bool, maxRate float64, burst int) error

	// SetDedupPolicy enables or disables route deduplication and replaces
	// the excluded routes.
	SetDedupPolicy(enabled bool, exclude []route.ID) error
}

// BasePlugin provides no-op implementations of the Plugin lifecycle methods.
// Embed it and override what you need.
type BasePlugin struct {
	PluginName string
}

// Name returns PluginName.
func (b BasePlugin) Name() string { return b.PluginName }

// Initialize is a no-op.
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }

// Shutdown is a no-op.
func (BasePlugin) Shutdown(context.Context) error { return nil }
