package client

import "github.com/piscesgamedev/pisces/internal/domain"

// Errors returned by the client. Check them with errors.Is.
var (
	ErrNotConnected       = domain.ErrNotConnected
	ErrRateLimited        = domain.ErrRateLimited
	ErrRequestLocked      = domain.ErrRequestLocked
	ErrInvalidMessage     = domain.ErrInvalidMessage
	ErrChannel            = domain.ErrChannel
	ErrClientClosed       = domain.ErrClientClosed
	ErrTimeout            = domain.ErrTimeout
	ErrConnectionLost     = domain.ErrConnectionLost
	ErrDuplicateMsgID     = domain.ErrDuplicateMsgID
	ErrReconnectExhausted = domain.ErrReconnectExhausted
	ErrInvalidConfig      = domain.ErrInvalidConfig
)
