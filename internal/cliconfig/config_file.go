package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileEnvironment is one [[environments]] table.
type FileEnvironment struct {
	Name        string `toml:"name"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Description string `toml:"description"`
}

// FileConfig mirrors Config with the units used in the TOML file:
// timeouts in milliseconds, heartbeat and reconnect delays in seconds.
type FileConfig struct {
	ChannelType             string            `toml:"channel_type"`
	Host                    string            `toml:"host"`
	Port                    int               `toml:"port"`
	WebSocketPath           string            `toml:"websocket_path"`
	ConnectTimeoutMs        int64             `toml:"connect_timeout_ms"`
	RequestTimeoutMs        int64             `toml:"request_timeout_ms"`
	HeartbeatIntervalSec    int64             `toml:"heartbeat_interval_sec"`
	HeartbeatTimeoutCount   int               `toml:"heartbeat_timeout_count"`
	AutoReconnect           *bool             `toml:"auto_reconnect"`
	ReconnectIntervalSec    int64             `toml:"reconnect_interval_sec"`
	MaxReconnectIntervalSec int64             `toml:"max_reconnect_interval_sec"`
	MaxReconnectCount       *int              `toml:"max_reconnect_count"`
	ReceiveBufferSize       int               `toml:"receive_buffer_size"`
	SendBufferSize          int               `toml:"send_buffer_size"`
	EnableRateLimit         *bool             `toml:"enable_rate_limit"`
	MaxSendRate             float64           `toml:"max_send_rate"`
	MaxBurstSize            int               `toml:"max_burst_size"`
	EnableRequestDedup      *bool             `toml:"enable_request_dedup"`
	DedupExcludeRoutes      []string          `toml:"dedup_exclude_routes"`
	PendingWarnThreshold    int               `toml:"pending_warn_threshold"`
	LogLevel                string            `toml:"log_level"`
	MetricsAddr             string            `toml:"metrics_addr"`
	ActiveEnvironment       string            `toml:"active_environment"`
	Environments            []FileEnvironment `toml:"environments"`
	Routes                  map[string]string `toml:"routes"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.pisces/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pisces", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setInt("port", fc.Port, &cfg.Port)
	s.setString("channel", fc.ChannelType, &cfg.ChannelType)
	s.setString("ws-path", fc.WebSocketPath, &cfg.WebSocketPath)
	s.setString("env", fc.ActiveEnvironment, &cfg.Environment)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	s.setMillis("connect-timeout", fc.ConnectTimeoutMs, &cfg.ConnectTimeout)
	s.setMillis("request-timeout", fc.RequestTimeoutMs, &cfg.RequestTimeout)
	s.setSeconds("heartbeat-interval", fc.HeartbeatIntervalSec, &cfg.HeartbeatInterval)
	s.setSeconds("reconnect-interval", fc.ReconnectIntervalSec, &cfg.ReconnectInterval)
	s.setSeconds("max-reconnect-interval", fc.MaxReconnectIntervalSec, &cfg.MaxReconnectInterval)

	s.setInt("heartbeat-timeout-count", fc.HeartbeatTimeoutCount, &cfg.HeartbeatTimeoutCount)
	s.setIntPtr("max-reconnect-count", fc.MaxReconnectCount, &cfg.MaxReconnectCount)
	s.setInt("receive-buffer", fc.ReceiveBufferSize, &cfg.ReceiveBufferSize)
	s.setInt("send-buffer", fc.SendBufferSize, &cfg.SendBufferSize)
	s.setInt("max-burst", fc.MaxBurstSize, &cfg.MaxBurstSize)
	s.setInt("pending-warn-threshold", fc.PendingWarnThreshold, &cfg.PendingWarnThreshold)
	s.setFloat("max-send-rate", fc.MaxSendRate, &cfg.MaxSendRate)

	s.setBool("auto-reconnect", fc.AutoReconnect, &cfg.AutoReconnect)
	s.setBool("rate-limit", fc.EnableRateLimit, &cfg.EnableRateLimit)
	s.setBool("dedup", fc.EnableRequestDedup, &cfg.EnableRequestDedup)
	s.setStrings("dedup-exclude", fc.DedupExcludeRoutes, &cfg.DedupExcludeRoutes)

	if len(fc.Environments) > 0 {
		cfg.Environments = cfg.Environments[:0]
		for _, env := range fc.Environments {
			cfg.Environments = append(cfg.Environments, Environment{
				Name:        env.Name,
				Host:        env.Host,
				Port:        env.Port,
				Description: env.Description,
			})
		}
	}

	if len(fc.Routes) > 0 {
		if cfg.Routes == nil {
			cfg.Routes = make(map[string]string, len(fc.Routes))
		}
		for k, name := range fc.Routes {
			cfg.Routes[k] = name
		}
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
