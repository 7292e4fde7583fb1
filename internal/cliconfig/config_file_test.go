package cliconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/piscesgamedev/pisces/pkg/route"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false
	zero := 0

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Host:                 "file.example.com",
				Port:                 7000,
				HeartbeatIntervalSec: 5,
				MaxSendRate:          5,
				AutoReconnect:        &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Host:              "file.example.com",
				Port:              7000,
				HeartbeatInterval: 5 * time.Second,
				MaxSendRate:       5,
				AutoReconnect:     true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Host: "file.example.com",
				Port: 7000,
			},
			changed: map[string]bool{"host": true},
			initial: Config{
				Host: "flag.example.com",
				Port: 9090,
			},
			expected: Config{
				Host: "flag.example.com", // unchanged because flag was set
				Port: 7000,
			},
		},
		{
			name:       "explicit zero reconnect count",
			fileConfig: FileConfig{MaxReconnectCount: &zero},
			changed:    map[string]bool{},
			initial:    Config{MaxReconnectCount: 5},
			expected:   Config{MaxReconnectCount: 0},
		},
		{
			name: "handles all field types correctly",
			fileConfig: FileConfig{
				ChannelType:             "websocket",
				Host:                    "h",
				Port:                    1,
				WebSocketPath:           "/ws",
				ConnectTimeoutMs:        1500,
				RequestTimeoutMs:        2500,
				HeartbeatIntervalSec:    5,
				HeartbeatTimeoutCount:   3,
				AutoReconnect:           &falseVal,
				ReconnectIntervalSec:    2,
				MaxReconnectIntervalSec: 8,
				MaxReconnectCount:       &zero,
				ReceiveBufferSize:       2048,
				SendBufferSize:          4096,
				EnableRateLimit:         &trueVal,
				MaxSendRate:             5,
				MaxBurstSize:            10,
				EnableRequestDedup:      &falseVal,
				DedupExcludeRoutes:      []string{"1-5"},
				PendingWarnThreshold:    50,
				LogLevel:                "warn",
				MetricsAddr:             ":2112",
				ActiveEnvironment:       "dev",
				Environments: []FileEnvironment{
					{Name: "dev", Host: "10.0.0.1", Port: 7000, Description: "local"},
				},
				Routes: map[string]string{"1-5": "login"},
			},
			changed: map[string]bool{},
			initial: Config{AutoReconnect: true, MaxReconnectCount: 5},
			expected: Config{
				Host:                  "h",
				Port:                  1,
				ChannelType:           "websocket",
				WebSocketPath:         "/ws",
				Environment:           "dev",
				Environments:          []Environment{{Name: "dev", Host: "10.0.0.1", Port: 7000, Description: "local"}},
				ConnectTimeout:        1500 * time.Millisecond,
				RequestTimeout:        2500 * time.Millisecond,
				HeartbeatInterval:     5 * time.Second,
				HeartbeatTimeoutCount: 3,
				AutoReconnect:         false,
				ReconnectInterval:     2 * time.Second,
				MaxReconnectInterval:  8 * time.Second,
				MaxReconnectCount:     0,
				ReceiveBufferSize:     2048,
				SendBufferSize:        4096,
				EnableRateLimit:       true,
				MaxSendRate:           5,
				MaxBurstSize:          10,
				EnableRequestDedup:    false,
				DedupExcludeRoutes:    []string{"1-5"},
				PendingWarnThreshold:  50,
				LogLevel:              "warn",
				MetricsAddr:           ":2112",
				Routes:                map[string]string{"1-5": "login"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyFileConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyFileConfig() unexpected error: %v", err)
				return
			}

			if !tt.wantErr && !reflect.DeepEqual(cfg, tt.expected) {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
channel_type = "tcp"
host = "127.0.0.1"
port = 9090
heartbeat_interval_sec = 5
heartbeat_timeout_count = 3
max_reconnect_count = 0
max_send_rate = 5.0
enable_request_dedup = true
dedup_exclude_routes = ["1-5", "2-1"]
active_environment = "dev"

[[environments]]
name = "dev"
host = "10.0.0.1"
port = 7000
description = "local server"

[[environments]]
name = "prod"
host = "game.example.com"

[routes]
"1-5" = "login"
"2-1" = "chat"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.ChannelType != "tcp" {
		t.Errorf("ChannelType = %v, want tcp", fc.ChannelType)
	}
	if fc.HeartbeatIntervalSec != 5 {
		t.Errorf("HeartbeatIntervalSec = %v, want 5", fc.HeartbeatIntervalSec)
	}
	if fc.MaxReconnectCount == nil || *fc.MaxReconnectCount != 0 {
		t.Errorf("MaxReconnectCount = %v, want explicit 0", fc.MaxReconnectCount)
	}
	if fc.MaxSendRate != 5 {
		t.Errorf("MaxSendRate = %v, want 5", fc.MaxSendRate)
	}
	if fc.EnableRequestDedup == nil || !*fc.EnableRequestDedup {
		t.Errorf("EnableRequestDedup = %v, want true", fc.EnableRequestDedup)
	}
	if fc.EnableRateLimit != nil {
		t.Errorf("EnableRateLimit = %v, want unset", *fc.EnableRateLimit)
	}
	if !reflect.DeepEqual(fc.DedupExcludeRoutes, []string{"1-5", "2-1"}) {
		t.Errorf("DedupExcludeRoutes = %v", fc.DedupExcludeRoutes)
	}
	if !reflect.DeepEqual(fc.Routes, map[string]string{"1-5": "login", "2-1": "chat"}) {
		t.Errorf("Routes = %v", fc.Routes)
	}
	if len(fc.Environments) != 2 || fc.Environments[0].Port != 7000 || fc.Environments[1].Host != "game.example.com" {
		t.Errorf("Environments = %+v", fc.Environments)
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, map[string]bool{}); err != nil {
		t.Fatalf("ApplyFileConfig() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Host != "10.0.0.1" || cfg.Port != 7000 {
		t.Errorf("resolved endpoint = %s:%d, want 10.0.0.1:7000", cfg.Host, cfg.Port)
	}
	names, err := cfg.RouteNames()
	if err != nil {
		t.Fatalf("RouteNames() error = %v", err)
	}
	if names[route.Merge(1, 5)] != "login" || names[route.Merge(2, 1)] != "chat" {
		t.Errorf("RouteNames() = %v", names)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
host = "127.0.0.1"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".pisces") {
		t.Errorf("DefaultConfigPath() = %v, should contain .pisces", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
