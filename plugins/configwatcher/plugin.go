// Package configwatcher reloads the tunable parts of a pisces config file
// while a client runs. It watches the file with fsnotify and pushes rate
// limit and dedup settings through the client's Tuner.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/piscesgamedev/pisces/internal/cliconfig"
	"github.com/piscesgamedev/pisces/pkg/client"
	"github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/route"
)

// Plugin implements config hot reload.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	base          cliconfig.Config
	changed       map[string]bool
	debounceDelay time.Duration

	// Runtime state
	logger   client.Logger
	tuner    client.Tuner
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML file to watch. Empty disables the plugin.
	Path string

	// Base is the configuration the client was started with. Each reload
	// applies the file on top of a copy of it.
	Base cliconfig.Config

	// Changed lists command-line flags that must keep their value across
	// reloads, keyed by flag name.
	Changed map[string]bool

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config watching the default config path.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		Base:          cliconfig.DefaultConfig(),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	changed := make(map[string]bool, len(cfg.Changed))
	for k, v := range cfg.Changed {
		changed[k] = v
	}

	return &Plugin{
		path:          cfg.Path,
		base:          cfg.Base,
		changed:       changed,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file.
func (p *Plugin) Initialize(ctx context.Context, cfg client.PluginConfig) error {
	p.mu.Lock()
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.tuner = cfg.Tuner
	p.mu.Unlock()

	if p.path == "" || p.tuner == nil {
		p.logger.Warn("config watcher disabled: no config file or tuner")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher started", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Reloads returns the number of successful reloads.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := p.reload(); err != nil {
			p.logger.Warn("config reload failed, keeping previous settings", log.Err(err))
		}
	})
}

// reload reads the file and applies the tunable settings.
func (p *Plugin) reload() error {
	if !cliconfig.FileExists(p.path) {
		return fmt.Errorf("config file %s is gone", p.path)
	}
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		return fmt.Errorf("load %s: %w", p.path, err)
	}

	cfg := p.base
	cfg.DedupExcludeRoutes = append([]string(nil), p.base.DedupExcludeRoutes...)
	if err := cliconfig.ApplyFileConfig(&cfg, fc, p.changed); err != nil {
		return err
	}
	exclude, err := route.ParseList(cfg.DedupExcludeRoutes)
	if err != nil {
		return fmt.Errorf("dedup exclude routes: %w", err)
	}

	if err := p.tuner.SetRateLimit(cfg.EnableRateLimit, cfg.MaxSendRate, cfg.MaxBurstSize); err != nil {
		return fmt.Errorf("apply rate limit: %w", err)
	}
	if err := p.tuner.SetDedupPolicy(cfg.EnableRequestDedup, exclude); err != nil {
		return fmt.Errorf("apply dedup policy: %w", err)
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()

	p.logger.Info("config reloaded",
		log.Bool("rate_limit", cfg.EnableRateLimit),
		log.Float64("max_send_rate", cfg.MaxSendRate),
		log.Int("max_burst", cfg.MaxBurstSize),
		log.Bool("dedup", cfg.EnableRequestDedup),
		log.Int("dedup_excluded", len(exclude)),
	)
	return nil
}

// Ensure Plugin implements client.Plugin.
var _ client.Plugin = (*Plugin)(nil)
