package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/piscesgamedev/pisces/internal/pending"
	"github.com/piscesgamedev/pisces/pkg/codec"
	"github.com/piscesgamedev/pisces/pkg/route"
)

// Call is a request that has been handed to the transport and is waiting
// for its response.
type Call struct {
	MsgID uint32
	Route route.ID

	client *Client
	handle *pending.Handle

	mu       sync.Mutex
	resolved bool
	msg      *codec.Message
	err      error
}

// Wait blocks until the response arrives, the request fails, or ctx is
// done. When ctx ends first the request is failed and its route released;
// an expired deadline is reported as ErrTimeout. Wait may be called more
// than once and returns the same outcome.
func (c *Call) Wait(ctx context.Context) (*codec.Message, error) {
	return c.wait(ctx, 0)
}

// wait is Wait with a fallback timeout applied when ctx has no deadline.
func (c *Call) wait(ctx context.Context, timeout time.Duration) (*codec.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.msg, c.err
	}

	var expired <-chan time.Time
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		t := c.client.clock.Timer(timeout)
		defer t.Stop()
		expired = t.C
	}

	var res pending.Result
	select {
	case res = <-c.handle.Done():
	case <-expired:
		res = c.abort(ErrTimeout)
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		res = c.abort(err)
	}

	c.resolved = true
	c.msg, c.err = res.Message, res.Err
	if c.err == nil && c.msg != nil {
		c.err = c.msg.Err()
	}
	return c.msg, c.err
}

// abort fails the request on the loop and returns whatever resolved it.
// A response that raced the cancellation wins.
func (c *Call) abort(err error) pending.Result {
	msgID := c.MsgID
	c.client.post(func() { c.client.cancelRequest(msgID, err) })
	return <-c.handle.Done()
}
