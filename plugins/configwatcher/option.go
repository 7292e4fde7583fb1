package configwatcher

import "github.com/piscesgamedev/pisces/pkg/client"

// WithConfigWatcher returns a client Option that reloads rate limit and
// dedup settings when the config file changes.
//
// Usage:
//
//	c, err := client.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          path,
//	        Base:          cliCfg,
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) client.Option {
	plugin := New(cfg)
	return client.WithPlugin(plugin)
}

// WithDefaultConfigWatcher returns a client Option that watches
// ~/.pisces/config.toml with default settings.
//
// Usage:
//
//	c, err := client.New(cfg, configwatcher.WithDefaultConfigWatcher())
func WithDefaultConfigWatcher() client.Option {
	return WithConfigWatcher(DefaultConfig())
}
