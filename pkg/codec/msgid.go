package codec

import "sync/atomic"

// IDGenerator issues message ids. Ids increase by one, wrap on overflow,
// and never equal zero, which is reserved for heartbeats and
// fire-and-forget messages.
type IDGenerator struct {
	last atomic.Uint32
}

// Next returns the next non-zero id. Safe for concurrent use.
func (g *IDGenerator) Next() uint32 {
	for {
		id := g.last.Add(1)
		if id != 0 {
			return id
		}
	}
}

// Reset restarts the sequence so the next id is 1.
func (g *IDGenerator) Reset() {
	g.last.Store(0)
}
