package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/piscesgamedev/pisces/pkg/client"
	"github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/route"
	"github.com/piscesgamedev/pisces/pkg/transport"
)

// Environment is a named server preset.
type Environment struct {
	Name        string
	Host        string
	Port        int
	Description string
}

// Config holds CLI configuration for pisces.
type Config struct {
	Host          string
	Port          int
	ChannelType   string
	WebSocketPath string

	// Environment selects one of Environments; its host and port win over
	// Host and Port during Validate.
	Environment  string
	Environments []Environment

	ConnectTimeout        time.Duration
	RequestTimeout        time.Duration
	HeartbeatInterval     time.Duration
	HeartbeatTimeoutCount int

	AutoReconnect        bool
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	MaxReconnectCount    int

	ReceiveBufferSize int
	SendBufferSize    int

	EnableRateLimit bool
	MaxSendRate     float64
	MaxBurstSize    int

	EnableRequestDedup bool
	DedupExcludeRoutes []string

	PendingWarnThreshold int

	// Routes maps route text ("1-5") to a display name used in output.
	Routes map[string]string

	LogLevel    string
	MetricsAddr string
	ConfigPath  string
}

// DefaultConfig returns a Config with the client library defaults.
func DefaultConfig() Config {
	d := client.DefaultConfig()
	return Config{
		Host:                  "127.0.0.1",
		Port:                  d.Port,
		ChannelType:           d.ChannelType.String(),
		ConnectTimeout:        d.ConnectTimeout,
		RequestTimeout:        d.RequestTimeout,
		HeartbeatInterval:     d.HeartbeatInterval,
		HeartbeatTimeoutCount: d.HeartbeatTimeoutCount,
		AutoReconnect:         d.AutoReconnect,
		ReconnectInterval:     d.ReconnectInterval,
		MaxReconnectInterval:  d.MaxReconnectInterval,
		MaxReconnectCount:     d.MaxReconnectCount,
		ReceiveBufferSize:     d.ReceiveBufferSize,
		SendBufferSize:        d.SendBufferSize,
		EnableRateLimit:       d.EnableRateLimit,
		MaxSendRate:           d.MaxSendRate,
		MaxBurstSize:          d.MaxBurstSize,
		EnableRequestDedup:    d.EnableRequestDedup,
		PendingWarnThreshold:  d.PendingWarnThreshold,
		LogLevel:              d.LogLevel,
	}
}

// Validate checks the CLI-level fields and resolves the active environment.
// Range checks on the session settings are left to client.Config.Validate.
func (c *Config) Validate() error {
	if c.Environment != "" {
		env, ok := c.lookupEnvironment(c.Environment)
		if !ok {
			return fmt.Errorf("unknown environment %q", c.Environment)
		}
		if env.Host != "" {
			c.Host = env.Host
		}
		if env.Port != 0 {
			c.Port = env.Port
		}
	}

	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if _, err := transport.ParseType(c.ChannelType); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := route.ParseList(c.DedupExcludeRoutes); err != nil {
		return fmt.Errorf("dedup exclude routes: %w", err)
	}
	if _, err := c.RouteNames(); err != nil {
		return err
	}
	return nil
}

// RouteNames parses the Routes keys for route.RegisterAll.
func (c *Config) RouteNames() (map[route.ID]string, error) {
	names := make(map[route.ID]string, len(c.Routes))
	for k, name := range c.Routes {
		r, err := route.Parse(k)
		if err != nil {
			return nil, fmt.Errorf("route names: %w", err)
		}
		if name == "" {
			return nil, fmt.Errorf("route names: empty name for %q", k)
		}
		names[r] = name
	}
	return names, nil
}

func (c *Config) lookupEnvironment(name string) (Environment, bool) {
	for _, env := range c.Environments {
		if strings.EqualFold(env.Name, name) {
			return env, true
		}
	}
	return Environment{}, false
}

// ClientConfig converts the CLI configuration into a client.Config.
// Call Validate first.
func (c *Config) ClientConfig() (client.Config, error) {
	channelType, err := transport.ParseType(c.ChannelType)
	if err != nil {
		return client.Config{}, err
	}
	exclude, err := route.ParseList(c.DedupExcludeRoutes)
	if err != nil {
		return client.Config{}, err
	}

	cfg := client.DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.ChannelType = channelType
	cfg.WebSocketPath = c.WebSocketPath
	cfg.ConnectTimeout = c.ConnectTimeout
	cfg.RequestTimeout = c.RequestTimeout
	cfg.HeartbeatInterval = c.HeartbeatInterval
	cfg.HeartbeatTimeoutCount = c.HeartbeatTimeoutCount
	cfg.AutoReconnect = c.AutoReconnect
	cfg.ReconnectInterval = c.ReconnectInterval
	cfg.MaxReconnectInterval = c.MaxReconnectInterval
	if cfg.MaxReconnectInterval < cfg.ReconnectInterval {
		cfg.MaxReconnectInterval = cfg.ReconnectInterval
	}
	cfg.MaxReconnectCount = c.MaxReconnectCount
	cfg.ReceiveBufferSize = c.ReceiveBufferSize
	cfg.SendBufferSize = c.SendBufferSize
	cfg.EnableRateLimit = c.EnableRateLimit
	cfg.MaxSendRate = c.MaxSendRate
	cfg.MaxBurstSize = c.MaxBurstSize
	cfg.EnableRequestDedup = c.EnableRequestDedup
	cfg.DedupExcludeRoutes = exclude
	if c.PendingWarnThreshold > 0 {
		cfg.PendingWarnThreshold = c.PendingWarnThreshold
	}
	cfg.LogLevel = c.LogLevel
	return cfg, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer, so zero can be configured.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setMillis sets a duration given in milliseconds.
func (s *configSetter) setMillis(flag string, value int64, dst *time.Duration) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = time.Duration(value) * time.Millisecond
}

// setSeconds sets a duration given in seconds.
func (s *configSetter) setSeconds(flag string, value int64, dst *time.Duration) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = time.Duration(value) * time.Second
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Zero is accepted since a zero reconnect count means unlimited.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setListFromString splits a comma separated list.
func (s *configSetter) setListFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
