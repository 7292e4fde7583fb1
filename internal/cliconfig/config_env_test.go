package cliconfig

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"PISCES_HOST":               "env.example.com",
				"PISCES_PORT":               "7001",
				"PISCES_HEARTBEAT_INTERVAL": "5s",
				"PISCES_MAX_SEND_RATE":      "12.5",
				"PISCES_MAX_BURST_SIZE":     "20",
				"PISCES_AUTO_RECONNECT":     "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Host:              "env.example.com",
				Port:              7001,
				HeartbeatInterval: 5 * time.Second,
				MaxSendRate:       12.5,
				MaxBurstSize:      20,
				AutoReconnect:     true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"PISCES_HOST": "env.example.com",
				"PISCES_PORT": "7001",
			},
			changed:  map[string]bool{"host": true},
			initial:  Config{Host: "flag.example.com"},
			expected: Config{Host: "flag.example.com", Port: 7001},
		},
		{
			name:     "zero reconnect count means unlimited",
			envVars:  map[string]string{"PISCES_MAX_RECONNECT_COUNT": "0"},
			changed:  map[string]bool{},
			initial:  Config{MaxReconnectCount: 5},
			expected: Config{MaxReconnectCount: 0},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"PISCES_REQUEST_TIMEOUT": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"PISCES_PORT": "not-a-number"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid float",
			envVars: map[string]string{"PISCES_MAX_SEND_RATE": "fast"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "handles bool '1' as true",
			envVars:  map[string]string{"PISCES_ENABLE_RATE_LIMIT": "1"},
			changed:  map[string]bool{},
			expected: Config{EnableRateLimit: true},
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"PISCES_ENABLE_REQUEST_DEDUP": "false"},
			changed:  map[string]bool{},
			initial:  Config{EnableRequestDedup: true},
			expected: Config{EnableRequestDedup: false},
		},
		{
			name: "handles all field types correctly",
			envVars: map[string]string{
				"PISCES_HOST":                    "h",
				"PISCES_PORT":                    "9",
				"PISCES_CHANNEL_TYPE":            "udp",
				"PISCES_WEBSOCKET_PATH":          "/ws",
				"PISCES_ENVIRONMENT":             "dev",
				"PISCES_LOG_LEVEL":               "debug",
				"PISCES_METRICS_ADDR":            ":2112",
				"PISCES_CONNECT_TIMEOUT":         "2s",
				"PISCES_REQUEST_TIMEOUT":         "3s",
				"PISCES_HEARTBEAT_INTERVAL":      "4s",
				"PISCES_RECONNECT_INTERVAL":      "5s",
				"PISCES_MAX_RECONNECT_INTERVAL":  "6s",
				"PISCES_HEARTBEAT_TIMEOUT_COUNT": "7",
				"PISCES_MAX_RECONNECT_COUNT":     "8",
				"PISCES_RECEIVE_BUFFER_SIZE":     "2048",
				"PISCES_SEND_BUFFER_SIZE":        "4096",
				"PISCES_MAX_BURST_SIZE":          "10",
				"PISCES_MAX_SEND_RATE":           "5",
				"PISCES_AUTO_RECONNECT":          "1",
				"PISCES_ENABLE_RATE_LIMIT":       "true",
				"PISCES_ENABLE_REQUEST_DEDUP":    "0",
				"PISCES_DEDUP_EXCLUDE_ROUTES":    "1-5, 2-1,,",
			},
			changed: map[string]bool{},
			expected: Config{
				Host:                  "h",
				Port:                  9,
				ChannelType:           "udp",
				WebSocketPath:         "/ws",
				Environment:           "dev",
				LogLevel:              "debug",
				MetricsAddr:           ":2112",
				ConnectTimeout:        2 * time.Second,
				RequestTimeout:        3 * time.Second,
				HeartbeatInterval:     4 * time.Second,
				ReconnectInterval:     5 * time.Second,
				MaxReconnectInterval:  6 * time.Second,
				HeartbeatTimeoutCount: 7,
				MaxReconnectCount:     8,
				ReceiveBufferSize:     2048,
				SendBufferSize:        4096,
				MaxBurstSize:          10,
				MaxSendRate:           5,
				AutoReconnect:         true,
				EnableRateLimit:       true,
				EnableRequestDedup:    false,
				DedupExcludeRoutes:    []string{"1-5", "2-1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyEnvConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyEnvConfig() unexpected error: %v", err)
				return
			}

			if !tt.wantErr && !reflect.DeepEqual(cfg, tt.expected) {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
