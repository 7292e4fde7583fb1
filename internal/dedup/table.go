// Package dedup guards routes so that at most one request per route is in
// flight at a time.
package dedup

import (
	"sync"

	"github.com/piscesgamedev/pisces/pkg/route"
)

// Table is the set of routes currently awaiting a response.
// Every Reserve that reports held must be paired with exactly one Unlock.
type Table struct {
	mu      sync.Mutex
	enabled bool
	exclude map[route.ID]struct{}
	locked  map[route.ID]struct{}
}

// New creates a table. When enabled is false every TryLock succeeds.
func New(enabled bool, exclude []route.ID) *Table {
	t := &Table{locked: make(map[route.ID]struct{})}
	t.SetPolicy(enabled, exclude)
	return t
}

// SetPolicy replaces the enabled flag and the exclude set. Routes already
// locked stay locked until released.
func (t *Table) SetPolicy(enabled bool, exclude []route.ID) {
	ex := make(map[route.ID]struct{}, len(exclude))
	for _, r := range exclude {
		ex[r] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	t.exclude = ex
}

// TryLock reserves the route. It fails only if dedup is enabled, the route
// is not excluded, and the route is already reserved.
func (t *Table) TryLock(r route.ID) bool {
	ok, _ := t.Reserve(r)
	return ok
}

// Reserve is TryLock that also reports whether this call inserted the route.
// Only a caller that got held=true may Unlock it; a pass-through reservation
// made while dedup was off or the route was excluded owns nothing.
func (t *Table) Reserve(r route.ID) (ok, held bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		return true, false
	}
	if _, ok := t.exclude[r]; ok {
		return true, false
	}
	if _, ok := t.locked[r]; ok {
		return false, false
	}
	t.locked[r] = struct{}{}
	return true, true
}

// Unlock releases the route. Releasing a route that is not held is a no-op.
func (t *Table) Unlock(r route.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locked, r)
}

// Clear releases every route.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locked = make(map[route.ID]struct{})
}

// IsLocked reports whether the route is reserved.
func (t *Table) IsLocked(r route.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.locked[r]
	return ok
}

// Len returns the number of reserved routes.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locked)
}

// Enabled reports whether deduplication is active.
func (t *Table) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}
