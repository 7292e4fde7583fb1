package domain

import "errors"

// Domain errors represent error conditions in the session layer.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrNotConnected is returned when a send is attempted outside the Connected state.
	ErrNotConnected = errors.New("pisces: not connected")

	// ErrRateLimited is returned when the outbound token bucket is empty.
	ErrRateLimited = errors.New("pisces: rate limited")

	// ErrRequestLocked is returned when the route already has a request in flight.
	ErrRequestLocked = errors.New("pisces: request locked")

	// ErrInvalidMessage is returned for a nil message, a zero route, or an oversized payload.
	ErrInvalidMessage = errors.New("pisces: invalid message")

	// ErrChannel is returned when the transport refuses a frame.
	ErrChannel = errors.New("pisces: channel error")

	// ErrClientClosed is returned by every call after Close.
	ErrClientClosed = errors.New("pisces: client closed")

	// ErrTimeout is returned when a request was not answered in time.
	ErrTimeout = errors.New("pisces: request timeout")

	// ErrConnectionLost fails pending requests when the connection drops.
	ErrConnectionLost = errors.New("pisces: connection lost")

	// ErrDuplicateMsgID means a message id was registered twice. It indicates a bug.
	ErrDuplicateMsgID = errors.New("pisces: duplicate message id")

	// ErrReconnectExhausted is reported when max_reconnect_count attempts have failed.
	ErrReconnectExhausted = errors.New("pisces: reconnect attempts exhausted")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("pisces: invalid configuration")
)
