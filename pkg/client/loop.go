package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/piscesgamedev/pisces/pkg/codec"
	"github.com/piscesgamedev/pisces/pkg/log"
	"github.com/piscesgamedev/pisces/pkg/route"
	"github.com/piscesgamedev/pisces/pkg/transport"
)

// run is the event loop. Every field marked as loop-owned is only touched
// from here.
func (c *Client) run() {
	defer close(c.loopDone)
	defer c.sweep.Stop()

	for !c.stopping {
		select {
		case fn := <-c.mailbox:
			fn()
		case <-c.sup.heartbeatC():
			c.heartbeat()
		case <-c.sup.reconnectC():
			c.sup.reconnectFired()
			c.reconnect()
		case <-c.sweep.C:
			c.sweepPending()
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (c *Client) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case c.mailbox <- func() { fn(); close(ran) }:
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ran
	return nil
}

// post queues fn on the loop without waiting for it. It is used by
// transport callbacks and must never be called from the loop itself.
func (c *Client) post(fn func()) bool {
	select {
	case c.mailbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

func (c *Client) transition(to State, reason string) {
	if err := c.lifecycle.TransitionTo(to, reason); err != nil {
		c.logger.Error("state transition rejected",
			log.Stringer("to", to),
			log.String("reason", reason),
			log.Err(err))
	}
}

func (c *Client) resolveWaiters(err error) {
	for _, w := range c.waiters {
		w <- err
	}
	c.waiters = nil
}

// --- Connection management ---

func (c *Client) connect(ctx context.Context, result chan error) {
	switch c.lifecycle.State() {
	case StateClosed:
		result <- ErrClientClosed
	case StateConnected:
		result <- nil
	case StateConnecting:
		c.waiters = append(c.waiters, result)
	case StateReconnecting:
		c.waiters = append(c.waiters, result)
		if !c.dialing {
			c.sup.stopReconnect()
			c.dial(ctx)
		}
	case StateDisconnected:
		c.waiters = append(c.waiters, result)
		c.transition(StateConnecting, "connect called")
		c.dial(ctx)
	}
}

// dial starts a connection attempt on a fresh channel. The result comes
// back through dialed.
func (c *Client) dial(parent context.Context) {
	c.gen++
	gen := c.gen

	ch, err := c.factory.NewChannel(c.cfg.ChannelType)
	if err != nil {
		c.dialFailed(fmt.Errorf("create %s channel: %w", c.cfg.ChannelType, err))
		return
	}
	ch.SetHandlers(transport.Handlers{
		OnReceive: func(_ transport.Channel, data []byte) {
			c.post(func() { c.receive(gen, data) })
		},
		OnDisconnected: func(_ transport.Channel, err error) {
			c.post(func() { c.channelDown(gen, err) })
		},
	})

	ctx, cancel := context.WithTimeout(parent, c.cfg.ConnectTimeout)
	c.dialing = true
	c.dialCancel = cancel

	host, port := c.cfg.Host, c.cfg.Port
	c.logger.Debug("connecting",
		log.String("addr", c.addr()),
		log.Stringer("channel", c.cfg.ChannelType))

	go func() {
		err := ch.Connect(ctx, host, port)
		cancel()
		if !c.post(func() { c.dialed(gen, ch, err) }) && err == nil {
			_ = ch.Disconnect()
		}
	}()
}

func (c *Client) dialed(gen uint64, ch transport.Channel, err error) {
	if gen != c.gen {
		if err == nil {
			_ = ch.Disconnect()
		}
		return
	}
	c.dialing = false
	c.dialCancel = nil

	if err != nil {
		c.dialFailed(fmt.Errorf("connect %s: %w", c.addr(), err))
		return
	}

	reason := "connected"
	reconnected := c.lifecycle.State() == StateReconnecting
	if reconnected {
		reason = "reconnected"
		c.stats.RecordReconnect()
	}
	c.ch = ch
	c.sup.connected()
	c.stats.RecordConnected()
	c.transition(StateConnected, reason)
	c.logger.Info("connected",
		log.String("addr", c.addr()),
		log.Stringer("channel", c.cfg.ChannelType),
		log.Bool("reconnect", reconnected))
	c.resolveWaiters(nil)
}

func (c *Client) dialFailed(err error) {
	c.dialing = false
	c.dialCancel = nil
	c.logger.Warn("connect failed", log.Err(err))

	if c.lifecycle.State() != StateReconnecting {
		c.transition(StateDisconnected, "connect failed")
		c.resolveWaiters(err)
		return
	}

	if c.sup.attemptFailed() {
		c.transition(StateDisconnected, "reconnect attempts exhausted")
		c.resolveWaiters(err)
		c.emitError(fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, c.sup.attempts, err))
		return
	}
	delay := c.sup.scheduleReconnect()
	c.logger.Info("reconnect scheduled",
		log.Int("attempt", c.sup.attempts+1),
		log.Duration("delay", delay))
	c.resolveWaiters(err)
}

// reconnect runs when the reconnect timer fires.
func (c *Client) reconnect() {
	if c.lifecycle.State() != StateReconnecting || c.dialing {
		return
	}
	c.logger.Info("reconnecting", log.Int("attempt", c.sup.attempts+1))
	c.dial(c.ctx)
}

// channelDown handles a transport failure or a peer close.
func (c *Client) channelDown(gen uint64, err error) {
	if gen != c.gen || c.ch == nil {
		return
	}
	c.connectionLost("channel disconnected", err)
}

// connectionLost is the single path for an unexpected disconnect.
func (c *Client) connectionLost(reason string, cause error) {
	c.teardown(ErrConnectionLost)
	c.logger.Warn("connection lost", log.String("reason", reason), log.Err(cause))

	if c.cfg.AutoReconnect {
		c.transition(StateReconnecting, reason)
		delay := c.sup.scheduleReconnect()
		c.logger.Info("reconnect scheduled",
			log.Int("attempt", c.sup.attempts+1),
			log.Duration("delay", delay))
	} else {
		c.transition(StateDisconnected, reason)
	}

	err := fmt.Errorf("%w: %s", ErrConnectionLost, reason)
	if cause != nil {
		err = fmt.Errorf("%w: %s: %w", ErrConnectionLost, reason, cause)
	}
	c.emitError(err)
}

// teardown drops the channel and everything tied to it: in-flight dials,
// heartbeats, pending requests, and route locks.
func (c *Client) teardown(err error) {
	c.sup.stopHeartbeat()
	c.gen++
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	c.dialing = false

	if c.ch != nil {
		c.ch.SetHandlers(transport.Handlers{})
		if derr := c.ch.Disconnect(); derr != nil {
			c.logger.Debug("channel disconnect", log.Err(derr))
		}
		c.ch = nil
		c.stats.RecordDisconnected()
	}

	if failed := c.pending.FailAll(err); len(failed) > 0 {
		c.logger.Info("pending requests failed",
			log.Int("count", len(failed)),
			log.Err(err))
	}
	c.dedup.Clear()
}

func (c *Client) disconnect() {
	switch c.lifecycle.State() {
	case StateDisconnected, StateClosed:
		return
	}
	c.sup.stop()
	c.teardown(ErrConnectionLost)
	c.transition(StateDisconnected, "disconnect called")
	c.resolveWaiters(fmt.Errorf("%w: disconnect called", ErrConnectionLost))
}

func (c *Client) shutdown() {
	c.sup.stop()
	c.teardown(ErrClientClosed)
	c.transition(StateClosed, "close called")
	c.resolveWaiters(ErrClientClosed)
	c.stopping = true
	close(c.done)
}

// --- Heartbeat and sweep ---

func (c *Client) heartbeat() {
	if c.ch == nil || c.lifecycle.State() != StateConnected {
		return
	}
	cmd := newHeartbeatCommand()
	frame := cmd.encode()
	cmd.release()

	if err := c.ch.Send(frame); err != nil {
		c.logger.Warn("heartbeat send failed", log.Err(err))
	} else {
		c.stats.RecordHeartbeatSent()
	}

	if c.sup.beat() {
		c.connectionLost("heartbeat timeout",
			fmt.Errorf("%d heartbeats unanswered", c.sup.misses))
	}
}

func (c *Client) sweepPending() {
	for _, e := range c.pending.Sweep(2 * c.cfg.RequestTimeout) {
		c.release(e.Route, e.Locked)
		c.stats.Forget(e.MsgID)
		c.stats.RecordTimeout()
	}
	c.stats.UpdateRates()
}

// --- Send path ---

func (c *Client) checkSendable(msg *codec.Message) SendResult {
	switch {
	case c.lifecycle.State() == StateClosed:
		return ResultClientClosed
	case c.lifecycle.State() != StateConnected || c.ch == nil:
		return ResultNotConnected
	case msg == nil || msg.Route == 0 || len(msg.Data) > c.cfg.SendBufferSize:
		return ResultInvalidMessage
	case !c.admit():
		return ResultRateLimited
	}
	return ResultSuccess
}

// admit takes a token from the rate limiter when it is enabled.
func (c *Client) admit() bool {
	if !c.rateLimitOn || c.limiter.TryAcquire() {
		return true
	}
	c.stats.RecordRateLimited()
	return false
}

func (c *Client) send(msg *codec.Message) (*Call, SendResult) {
	if res := c.checkSendable(msg); res != ResultSuccess {
		return nil, res
	}
	r := msg.Route
	ok, held := c.dedup.Reserve(r)
	if !ok {
		c.logger.Debug("request locked", log.Stringer("route", r))
		return nil, ResultRequestLocked
	}

	msgID := c.ids.Next()
	handle, err := c.pending.Register(msgID, r, held)
	if err != nil {
		c.release(r, held)
		c.logger.Error("message id already pending",
			log.Uint32("msg_id", msgID),
			log.Stringer("route", r))
		return nil, ResultDuplicateMsgID
	}

	cmd := newBusinessCommand(msg, msgID)
	frame := cmd.encode()
	cmd.release()

	if err := c.ch.Send(frame); err != nil {
		if e, ok := c.pending.Fail(msgID, fmt.Errorf("%w: %w", ErrChannel, err)); ok {
			c.release(e.Route, e.Locked)
		}
		c.stats.RecordSendFailed()
		c.logger.Warn("send failed",
			log.Uint32("msg_id", msgID),
			log.Stringer("route", r),
			log.Err(err))
		return nil, ResultChannelError
	}
	c.stats.RecordSent(r, msgID, len(frame))
	return &Call{MsgID: msgID, Route: r, client: c, handle: handle}, ResultSuccess
}

func (c *Client) notify(msg *codec.Message) SendResult {
	if res := c.checkSendable(msg); res != ResultSuccess {
		return res
	}
	cmd := newBusinessCommand(msg, 0)
	frame := cmd.encode()
	cmd.release()

	if err := c.ch.Send(frame); err != nil {
		c.stats.RecordSendFailed()
		c.logger.Warn("notify failed", log.Stringer("route", msg.Route), log.Err(err))
		return ResultChannelError
	}
	c.stats.RecordSent(msg.Route, 0, len(frame))
	return ResultSuccess
}

// cancelRequest fails a request on behalf of its caller.
func (c *Client) cancelRequest(msgID uint32, err error) {
	e, ok := c.pending.Fail(msgID, err)
	if !ok {
		return
	}
	c.release(e.Route, e.Locked)
	c.stats.Forget(msgID)
	if errors.Is(err, ErrTimeout) {
		c.stats.RecordTimeout()
	}
}

// release drops the route's dedup lock if the request took it.
func (c *Client) release(r route.ID, held bool) {
	if held {
		c.dedup.Unlock(r)
	}
}

// --- Receive path ---

func (c *Client) receive(gen uint64, data []byte) {
	if gen != c.gen {
		return
	}
	msg, err := codec.Decode(data)
	if err != nil {
		c.logger.Warn("dropping malformed frame", log.Int("size", len(data)), log.Err(err))
		return
	}

	if msg.IsHeartbeat() {
		c.sup.ack()
		c.stats.RecordHeartbeatReceived()
		return
	}
	if msg.CmdCode == codec.CmdHeartbeat {
		c.logger.Warn("dropping heartbeat frame with message id",
			log.Uint32("msg_id", msg.MsgID))
		return
	}
	if msg.CmdCode != codec.CmdBusiness {
		c.logger.Warn("dropping frame with unknown command code",
			log.Int("cmd_code", int(msg.CmdCode)),
			log.Uint32("msg_id", msg.MsgID),
			log.Stringer("route", msg.Route))
		return
	}

	if msg.MsgID == 0 {
		c.stats.RecordReceived(msg.Route, 0, len(data), msg.ResponseStatus)
		c.emitMessage(msg)
		return
	}

	e, ok := c.pending.Complete(msg.MsgID, msg)
	if !ok {
		c.logger.Debug("dropping response for unknown request",
			log.Uint32("msg_id", msg.MsgID),
			log.Stringer("route", msg.Route))
		return
	}
	c.release(e.Route, e.Locked)
	c.stats.RecordReceived(msg.Route, msg.MsgID, len(data), msg.ResponseStatus)
}

// --- Notifications ---

func (c *Client) emitMessage(msg *codec.Message) {
	if h := c.handler; h != nil {
		c.events.Post(func() { h.OnMessage(msg) })
	}
}

func (c *Client) emitError(err error) {
	if h := c.handler; h != nil {
		c.events.Post(func() { h.OnError(err) })
	}
}
