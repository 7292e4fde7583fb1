package client

import (
	"time"

	"github.com/piscesgamedev/pisces/pkg/codec"
	"github.com/piscesgamedev/pisces/pkg/lifecycle"
)

// State represents the connection state of a Client.
type State = lifecycle.State

// Connection states.
const (
	StateDisconnected = lifecycle.StateDisconnected
	StateConnecting   = lifecycle.StateConnecting
	StateConnected    = lifecycle.StateConnected
	StateReconnecting = lifecycle.StateReconnecting
	StateClosed       = lifecycle.StateClosed
)

// StateChangeEvent describes a connection state transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
	Time     time.Time
}

// EventHandler receives client notifications. Calls are made one at a time
// in the order the events happened.
type EventHandler interface {
	// OnStateChange is called after every connection state transition.
	OnStateChange(event StateChangeEvent)

	// OnMessage is called for every broadcast (MsgId 0) frame.
	OnMessage(msg *codec.Message)

	// OnError is called for connection-level failures: lost connections
	// and exhausted reconnects.
	OnError(err error)
}

// BaseEventHandler provides no-op implementations of all EventHandler methods.
// Embed this in your handler to only implement the methods you need.
type BaseEventHandler struct{}

// OnStateChange is a no-op.
func (BaseEventHandler) OnStateChange(StateChangeEvent) {}

// OnMessage is a no-op.
func (BaseEventHandler) OnMessage(*codec.Message) {}

// OnError is a no-op.
func (BaseEventHandler) OnError(error) {}

// EventHandlerFuncs adapts plain functions to EventHandler. Nil fields are
// skipped.
type EventHandlerFuncs struct {
	StateChange func(StateChangeEvent)
	Message     func(*codec.Message)
	Error       func(error)
}

// OnStateChange calls StateChange.
func (f EventHandlerFuncs) OnStateChange(e StateChangeEvent) {
	if f.StateChange != nil {
		f.StateChange(e)
	}
}

// OnMessage calls Message.
func (f EventHandlerFuncs) OnMessage(m *codec.Message) {
	if f.Message != nil {
		f.Message(m)
	}
}

// OnError calls Error.
func (f EventHandlerFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

var (
	_ EventHandler = BaseEventHandler{}
	_ EventHandler = EventHandlerFuncs{}
)
