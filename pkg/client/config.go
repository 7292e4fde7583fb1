package client

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/piscesgamedev/pisces/internal/domain"
	"github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/route"
	"github.com/piscesgamedev/pisces/pkg/transport"
)

// Default configuration values.
const (
	DefaultPort                  = 9090
	DefaultConnectTimeout        = 10 * time.Second
	DefaultRequestTimeout        = 30 * time.Second
	DefaultHeartbeatInterval     = 30 * time.Second
	DefaultHeartbeatTimeoutCount = 3
	DefaultReconnectInterval     = 3 * time.Second
	DefaultMaxReconnectCount     = 5
	DefaultBufferSize            = 64 << 10
	DefaultMaxSendRate           = 50
	DefaultMaxBurstSize          = 100
	DefaultSweepInterval         = 5 * time.Second
	DefaultLogLevel              = "info"

	minBufferSize = 1 << 10
)

// Config holds the configuration for a Client.
// Start from DefaultConfig: boolean switches and MaxReconnectCount have
// meaningful zero values, so SetDefaults leaves them alone.
type Config struct {
	// Host is the server address. A ws:// or wss:// URL is used as-is by
	// the message channel.
	Host string

	// Port is the server port. Default: 9090
	Port int

	// ChannelType selects the transport. Default: stream
	ChannelType transport.Type

	// WebSocketPath is appended to ws://host:port for the message channel.
	WebSocketPath string

	// ConnectTimeout bounds a single connection attempt. Range 1s-60s.
	// Default: 10 seconds
	ConnectTimeout time.Duration

	// RequestTimeout bounds Send when the context has no deadline.
	// Range 1s-120s. Default: 30 seconds
	RequestTimeout time.Duration

	// HeartbeatInterval is the delay between heartbeats. Range 1s-120s.
	// Default: 30 seconds
	HeartbeatInterval time.Duration

	// HeartbeatTimeoutCount is the number of unanswered heartbeats after
	// which the connection is considered dead. Range 1-10. Default: 3
	HeartbeatTimeoutCount int

	// AutoReconnect enables the reconnect supervisor. Default: true
	AutoReconnect bool

	// ReconnectInterval is the delay before each reconnect attempt.
	// Range 1s-30s. Default: 3 seconds
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the exponential growth of the reconnect
	// delay. Equal to ReconnectInterval means a fixed delay.
	// Default: ReconnectInterval
	MaxReconnectInterval time.Duration

	// MaxReconnectCount is the number of failed attempts before giving up.
	// Zero means unlimited. Range 0-100. Default: 5
	MaxReconnectCount int

	// ReceiveBufferSize and SendBufferSize size the transport buffers.
	// SendBufferSize also bounds the payload of a single message.
	// Minimum 1 KiB. Default: 64 KiB
	ReceiveBufferSize int
	SendBufferSize    int

	// EnableRateLimit turns on the outbound token bucket. Default: true
	EnableRateLimit bool

	// MaxSendRate is the refill rate in messages per second. Default: 50
	MaxSendRate float64

	// MaxBurstSize is the bucket capacity. Default: 100
	MaxBurstSize int

	// EnableRequestDedup allows one in-flight request per route.
	// Default: true
	EnableRequestDedup bool

	// DedupExcludeRoutes are exempt from deduplication.
	DedupExcludeRoutes []route.ID

	// LogLevel is used by callers that build their logger from config.
	// One of debug, info, warn, error, off. Default: info
	LogLevel string

	// SweepInterval is the period of the pending request sweep.
	// Default: 5 seconds
	SweepInterval time.Duration

	// PendingWarnThreshold is the pending table size that triggers a
	// warning during the sweep. Default: 100
	PendingWarnThreshold int
}

// DefaultConfig returns a Config with sensible defaults.
// Host must still be set before use.
func DefaultConfig() Config {
	cfg := Config{
		AutoReconnect:      true,
		MaxReconnectCount:  DefaultMaxReconnectCount,
		EnableRateLimit:    true,
		EnableRequestDedup: true,
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatTimeoutCount == 0 {
		c.HeartbeatTimeoutCount = DefaultHeartbeatTimeoutCount
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.MaxReconnectInterval == 0 {
		c.MaxReconnectInterval = c.ReconnectInterval
	}
	if c.ReceiveBufferSize == 0 {
		c.ReceiveBufferSize = DefaultBufferSize
	}
	if c.SendBufferSize == 0 {
		c.SendBufferSize = DefaultBufferSize
	}
	if c.MaxSendRate == 0 {
		c.MaxSendRate = DefaultMaxSendRate
	}
	if c.MaxBurstSize == 0 {
		c.MaxBurstSize = DefaultMaxBurstSize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.PendingWarnThreshold == 0 {
		c.PendingWarnThreshold = 100
	}
}

// Validate checks the configuration and reports every violation at once.
// The returned error wraps ErrInvalidConfig.
func (c Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}
	inRange := func(name string, d, lo, hi time.Duration) {
		if d < lo || d > hi {
			add("%s must be between %s and %s, got %s", name, lo, hi, d)
		}
	}

	if c.Host == "" {
		add("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		add("port must be between 1 and 65535, got %d", c.Port)
	}
	switch c.ChannelType {
	case transport.Stream, transport.Datagram, transport.Message:
	default:
		add("unknown channel type %d", int(c.ChannelType))
	}
	inRange("connect timeout", c.ConnectTimeout, time.Second, 60*time.Second)
	inRange("request timeout", c.RequestTimeout, time.Second, 120*time.Second)
	inRange("heartbeat interval", c.HeartbeatInterval, time.Second, 120*time.Second)
	if c.HeartbeatTimeoutCount < 1 || c.HeartbeatTimeoutCount > 10 {
		add("heartbeat timeout count must be between 1 and 10, got %d", c.HeartbeatTimeoutCount)
	}
	inRange("reconnect interval", c.ReconnectInterval, time.Second, 30*time.Second)
	if c.MaxReconnectInterval < c.ReconnectInterval {
		add("max reconnect interval %s is below reconnect interval %s", c.MaxReconnectInterval, c.ReconnectInterval)
	}
	if c.MaxReconnectCount < 0 || c.MaxReconnectCount > 100 {
		add("max reconnect count must be between 0 and 100, got %d", c.MaxReconnectCount)
	}
	if c.ReceiveBufferSize < minBufferSize {
		add("receive buffer size must be at least %d, got %d", minBufferSize, c.ReceiveBufferSize)
	}
	if c.SendBufferSize < minBufferSize {
		add("send buffer size must be at least %d, got %d", minBufferSize, c.SendBufferSize)
	}
	if c.MaxSendRate <= 0 {
		add("max send rate must be positive, got %g", c.MaxSendRate)
	}
	if c.MaxBurstSize < 1 {
		add("max burst size must be at least 1, got %d", c.MaxBurstSize)
	}
	if c.SweepInterval <= 0 {
		add("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.PendingWarnThreshold < 1 {
		add("pending warn threshold must be at least 1, got %d", c.PendingWarnThreshold)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		add("%v", err)
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errs)
	}
	return nil
}

// transportOptions derives driver options from the configuration.
func (c Config) transportOptions(logger log.Logger) transport.Options {
	opts := transport.DefaultOptions()
	opts.ReceiveBufferSize = c.ReceiveBufferSize
	opts.SendBufferSize = c.SendBufferSize
	opts.WebSocketPath = c.WebSocketPath
	opts.Logger = logger
	return opts
}
