package configwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piscesgamedev/pisces/internal/cliconfig"
	"github.com/piscesgamedev/pisces/pkg/client"
	"github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/route"
)

type rateCall struct {
	enabled bool
	rate    float64
	burst   int
}

type dedupCall struct {
	enabled bool
	exclude []route.ID
}

type fakeTuner struct {
	mu     sync.Mutex
	rates  []rateCall
	dedups []dedupCall
	err    error
}

func (f *fakeTuner) SetRateLimit(enabled bool, maxRate float64, burst int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rates = append(f.rates, rateCall{enabled, maxRate, burst})
	return nil
}

func (f *fakeTuner) SetDedupPolicy(enabled bool, exclude []route.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dedups = append(f.dedups, dedupCall{enabled, exclude})
	return nil
}

func (f *fakeTuner) last() (rateCall, dedupCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rates) == 0 || len(f.dedups) == 0 {
		return rateCall{}, dedupCall{}, false
	}
	return f.rates[len(f.rates)-1], f.dedups[len(f.dedups)-1], true
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func pluginConfig(tuner client.Tuner) client.PluginConfig {
	return client.PluginConfig{
		SessionID: "test-session",
		Logger:    log.NewNoopLogger(),
		Tuner:     tuner,
	}
}

func TestPlugin_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "host = \"127.0.0.1\"\n")

	plugin := New(Config{
		Path:          path,
		Base:          cliconfig.DefaultConfig(),
		DebounceDelay: 10 * time.Millisecond,
	})
	tuner := &fakeTuner{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, plugin.Initialize(ctx, pluginConfig(tuner)))
	defer plugin.Shutdown(ctx)

	writeConfig(t, path, `
max_send_rate = 5.0
max_burst_size = 10
enable_request_dedup = false
dedup_exclude_routes = ["1-5"]
`)

	require.Eventually(t, func() bool {
		rate, dedup, ok := tuner.last()
		return ok && rate.rate == 5 && !dedup.enabled
	}, 5*time.Second, 10*time.Millisecond)

	rate, dedup, _ := tuner.last()
	assert.Equal(t, rateCall{enabled: true, rate: 5, burst: 10}, rate)
	assert.Equal(t, []route.ID{route.Merge(1, 5)}, dedup.exclude)
	assert.GreaterOrEqual(t, plugin.Reloads(), 1)
}

func TestPlugin_ReloadKeepsChangedFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "max_send_rate = 5.0\nmax_burst_size = 10\n")

	base := cliconfig.DefaultConfig()
	base.MaxSendRate = 42
	tuner := &fakeTuner{}
	plugin := New(Config{
		Path:    path,
		Base:    base,
		Changed: map[string]bool{"max-send-rate": true},
	})
	plugin.tuner = tuner
	plugin.logger = log.NewNoopLogger()

	require.NoError(t, plugin.reload())

	rate, _, ok := tuner.last()
	require.True(t, ok)
	assert.Equal(t, 42.0, rate.rate)
	assert.Equal(t, 10, rate.burst)
	assert.Equal(t, 42.0, plugin.base.MaxSendRate, "base must not be mutated")
}

func TestPlugin_ReloadErrorsKeepPreviousSettings(t *testing.T) {
	dir := t.TempDir()
	tuner := &fakeTuner{}

	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{name: "invalid toml", content: "this is not toml"},
		{name: "bad exclude route", content: `dedup_exclude_routes = ["x-y"]`},
		{name: "missing file", missing: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			if !tt.missing {
				writeConfig(t, path, tt.content)
			}
			plugin := New(Config{Path: path, Base: cliconfig.DefaultConfig()})
			plugin.tuner = tuner
			plugin.logger = log.NewNoopLogger()

			assert.Error(t, plugin.reload())
			assert.Equal(t, 0, plugin.Reloads())
		})
	}

	_, _, ok := tuner.last()
	assert.False(t, ok)
}

func TestPlugin_TunerErrorIsReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "max_send_rate = 5.0\n")

	plugin := New(Config{Path: path, Base: cliconfig.DefaultConfig()})
	plugin.tuner = &fakeTuner{err: client.ErrClientClosed}
	plugin.logger = log.NewNoopLogger()

	err := plugin.reload()
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrClientClosed))
}

func TestPlugin_DisabledWithoutPath(t *testing.T) {
	plugin := New(Config{})
	ctx := context.Background()

	require.NoError(t, plugin.Initialize(ctx, pluginConfig(&fakeTuner{})))
	assert.NoError(t, plugin.Shutdown(ctx))
}

func TestPlugin_InitializeFailsForMissingDirectory(t *testing.T) {
	plugin := New(Config{Path: "/nonexistent/dir/config.toml"})
	err := plugin.Initialize(context.Background(), pluginConfig(&fakeTuner{}))
	assert.Error(t, err)
}

func TestPlugin_Name(t *testing.T) {
	plugin := New(DefaultConfig())
	if plugin.Name() != "configwatcher" {
		t.Errorf("Name() = %v, want configwatcher", plugin.Name())
	}
}
