// Package dispatch delivers notifications in order on a dedicated goroutine.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"

	"github.com/piscesgamedev/pisces/pkg/log"
)

// Dispatcher runs posted functions one at a time in posting order. The
// queue is unbounded so posting never blocks the caller, and a function
// may itself post or call back into the component that posted it.
type Dispatcher struct {
	mu     sync.Mutex
	queue  deque.Deque[func()]
	closed bool
	wake   chan struct{}
	done   chan struct{}
	logger log.Logger
}

// New starts a dispatcher goroutine.
func New(logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	d := &Dispatcher{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

// Post queues fn. It returns false if the dispatcher is closed.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue.PushBack(fn)
	d.mu.Unlock()

	d.signal()
	return true
}

// Close stops accepting work. Functions already queued still run. Close
// does not wait, so it is safe to call from a dispatched function; use Done
// to wait for the drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

// Done is closed after the queue has drained following Close.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Len returns the number of queued functions.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		if d.queue.Len() == 0 {
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			<-d.wake
			continue
		}
		fn := d.queue.PopFront()
		d.mu.Unlock()

		d.invoke(fn)
	}
}

func (d *Dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification handler panicked", log.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
