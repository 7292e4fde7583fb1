// Package pisces is a client-side session layer for game servers.
//
// Example usage:
//
//	cfg := pisces.DefaultConfig()
//	cfg.Host = "127.0.0.1"
//	c, err := pisces.New(cfg, client.WithLogger(log.NewZerologAdapter()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//	if err := c.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := c.Request(ctx, pisces.Route(1, 5), []byte("hello"))
package pisces

import (
	"github.com/piscesgamedev/pisces/pkg/client"
	"github.com/piscesgamedev/pisces/pkg/route"
)

// Config holds the configuration for a session.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = client.Config

// Client is one game server session.
type Client = client.Client

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set Host before calling New.
func DefaultConfig() Config {
	return client.DefaultConfig()
}

// New creates a session. It does not connect.
func New(cfg Config, opts ...client.Option) (*Client, error) {
	return client.New(cfg, opts...)
}

// Route merges a primary and sub command into a route id.
func Route(primary, sub uint16) route.ID {
	return route.Merge(primary, sub)
}
