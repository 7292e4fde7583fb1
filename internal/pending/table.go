// Package pending correlates outstanding requests with their responses.
package pending

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/piscesgamedev/pisces/internal/domain"
	"github.com/piscesgamedev/pisces/pkg/codec"
	"github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/route"
)

// DefaultSoftLimit is the table size above which Sweep logs a warning.
const DefaultSoftLimit = 100

// Result is the outcome of a request: a response message or an error.
type Result struct {
	Message *codec.Message
	Err     error
}

// Handle is the completion handle of one registered request.
type Handle struct {
	msgID   uint32
	route   route.ID
	locked  bool
	created time.Time
	done    chan Result
}

// MsgID returns the correlation id.
func (h *Handle) MsgID() uint32 { return h.msgID }

// Route returns the route the request was sent on.
func (h *Handle) Route() route.ID { return h.route }

// Locked reports whether the request holds its route's dedup lock.
func (h *Handle) Locked() bool { return h.locked }

// Created returns the registration time.
func (h *Handle) Created() time.Time { return h.created }

// Done receives exactly one Result.
func (h *Handle) Done() <-chan Result { return h.done }

// Entry describes an entry removed by Complete or Fail. Locked is true
// when the remover must release the route's dedup lock.
type Entry struct {
	MsgID  uint32
	Route  route.ID
	Locked bool
}

// Expired describes an entry removed by Sweep.
type Expired struct {
	MsgID  uint32
	Route  route.ID
	Locked bool
	Age    time.Duration
}

// Table maps message ids to pending handles. Removing an entry and
// resolving its handle happen under the same lock, so each handle resolves
// exactly once and the remover owns any cleanup tied to the entry.
type Table struct {
	mu        sync.Mutex
	clock     clock.Clock
	logger    log.Logger
	softLimit int
	entries   map[uint32]*Handle
}

// New creates an empty table.
func New(clk clock.Clock, logger log.Logger, softLimit int) *Table {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if softLimit <= 0 {
		softLimit = DefaultSoftLimit
	}
	return &Table{
		clock:     clk,
		logger:    logger,
		softLimit: softLimit,
		entries:   make(map[uint32]*Handle),
	}
}

// Register adds an entry. It returns domain.ErrDuplicateMsgID if the id is
// already pending.
func (t *Table) Register(msgID uint32, r route.ID, locked bool) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[msgID]; ok {
		return nil, domain.ErrDuplicateMsgID
	}
	h := &Handle{
		msgID:   msgID,
		route:   r,
		locked:  locked,
		created: t.clock.Now(),
		done:    make(chan Result, 1),
	}
	t.entries[msgID] = h
	return h, nil
}

// Complete resolves the entry with a response. It returns the removed entry
// and true if the entry existed.
func (t *Table) Complete(msgID uint32, msg *codec.Message) (Entry, bool) {
	return t.resolve(msgID, Result{Message: msg})
}

// Fail resolves the entry with an error. It returns the removed entry and
// true if the entry existed.
func (t *Table) Fail(msgID uint32, err error) (Entry, bool) {
	return t.resolve(msgID, Result{Err: err})
}

func (t *Table) resolve(msgID uint32, res Result) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.entries[msgID]
	if !ok {
		return Entry{}, false
	}
	delete(t.entries, msgID)
	h.done <- res
	return Entry{MsgID: msgID, Route: h.route, Locked: h.locked}, true
}

// FailAll resolves every entry with err and returns their routes.
func (t *Table) FailAll(err error) []route.ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	routes := make([]route.ID, 0, len(t.entries))
	for id, h := range t.entries {
		delete(t.entries, id)
		h.done <- Result{Err: err}
		routes = append(routes, h.route)
	}
	return routes
}

// Sweep fails entries older than maxAge with domain.ErrTimeout and removes
// them. It also warns when the table is larger than the soft limit.
func (t *Table) Sweep(maxAge time.Duration) []Expired {
	now := t.clock.Now()

	t.mu.Lock()
	var expired []Expired
	for id, h := range t.entries {
		age := now.Sub(h.created)
		if age <= maxAge {
			continue
		}
		delete(t.entries, id)
		h.done <- Result{Err: domain.ErrTimeout}
		expired = append(expired, Expired{MsgID: id, Route: h.route, Locked: h.locked, Age: age})
	}
	size := len(t.entries)
	t.mu.Unlock()

	for _, e := range expired {
		t.logger.Warn("pending request expired",
			log.Uint32("msg_id", e.MsgID),
			log.Stringer("route", e.Route),
			log.Duration("age", e.Age),
		)
	}
	if size > t.softLimit {
		t.logger.Warn("too many pending requests",
			log.Int("pending", size),
			log.Int("soft_limit", t.softLimit),
		)
	}
	return expired
}

// Len returns the number of pending entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Has reports whether the id is pending.
func (t *Table) Has(msgID uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[msgID]
	return ok
}
