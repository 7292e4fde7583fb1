package cliconfig

import (
	"os"
	"time"
)

// ApplyEnvConfig applies configuration from environment variables (PISCES_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", os.Getenv("PISCES_HOST"), &cfg.Host)
	s.setString("channel", os.Getenv("PISCES_CHANNEL_TYPE"), &cfg.ChannelType)
	s.setString("ws-path", os.Getenv("PISCES_WEBSOCKET_PATH"), &cfg.WebSocketPath)
	s.setString("env", os.Getenv("PISCES_ENVIRONMENT"), &cfg.Environment)
	s.setString("log-level", os.Getenv("PISCES_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("PISCES_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setIntFromString("port", os.Getenv("PISCES_PORT"), &cfg.Port); err != nil {
		return err
	}

	durations := []struct {
		flag, env string
		dst       *time.Duration
	}{
		{"connect-timeout", "PISCES_CONNECT_TIMEOUT", &cfg.ConnectTimeout},
		{"request-timeout", "PISCES_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"heartbeat-interval", "PISCES_HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval},
		{"reconnect-interval", "PISCES_RECONNECT_INTERVAL", &cfg.ReconnectInterval},
		{"max-reconnect-interval", "PISCES_MAX_RECONNECT_INTERVAL", &cfg.MaxReconnectInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, os.Getenv(d.env), d.dst); err != nil {
			return err
		}
	}

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"heartbeat-timeout-count", "PISCES_HEARTBEAT_TIMEOUT_COUNT", &cfg.HeartbeatTimeoutCount},
		{"max-reconnect-count", "PISCES_MAX_RECONNECT_COUNT", &cfg.MaxReconnectCount},
		{"receive-buffer", "PISCES_RECEIVE_BUFFER_SIZE", &cfg.ReceiveBufferSize},
		{"send-buffer", "PISCES_SEND_BUFFER_SIZE", &cfg.SendBufferSize},
		{"max-burst", "PISCES_MAX_BURST_SIZE", &cfg.MaxBurstSize},
		{"pending-warn-threshold", "PISCES_PENDING_WARN_THRESHOLD", &cfg.PendingWarnThreshold},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, os.Getenv(i.env), i.dst); err != nil {
			return err
		}
	}

	if err := s.setFloatFromString("max-send-rate", os.Getenv("PISCES_MAX_SEND_RATE"), &cfg.MaxSendRate); err != nil {
		return err
	}

	s.setBoolFromString("auto-reconnect", os.Getenv("PISCES_AUTO_RECONNECT"), &cfg.AutoReconnect)
	s.setBoolFromString("rate-limit", os.Getenv("PISCES_ENABLE_RATE_LIMIT"), &cfg.EnableRateLimit)
	s.setBoolFromString("dedup", os.Getenv("PISCES_ENABLE_REQUEST_DEDUP"), &cfg.EnableRequestDedup)
	s.setListFromString("dedup-exclude", os.Getenv("PISCES_DEDUP_EXCLUDE_ROUTES"), &cfg.DedupExcludeRoutes)

	return nil
}
