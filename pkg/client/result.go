package client

// SendResult is the synchronous outcome of handing a message to the client.
type SendResult int

const (
	ResultSuccess SendResult = iota
	ResultNotConnected
	ResultRateLimited
	ResultRequestLocked
	ResultInvalidMessage
	ResultChannelError
	ResultClientClosed
	ResultDuplicateMsgID
)

// String returns a human-readable representation of the result.
func (r SendResult) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultNotConnected:
		return "NotConnected"
	case ResultRateLimited:
		return "RateLimited"
	case ResultRequestLocked:
		return "RequestLocked"
	case ResultInvalidMessage:
		return "InvalidMessage"
	case ResultChannelError:
		return "ChannelError"
	case ResultClientClosed:
		return "ClientClosed"
	case ResultDuplicateMsgID:
		return "DuplicateMsgId"
	default:
		return "Unknown"
	}
}

// Err returns the sentinel error for the result, or nil on success.
func (r SendResult) Err() error {
	switch r {
	case ResultSuccess:
		return nil
	case ResultNotConnected:
		return ErrNotConnected
	case ResultRateLimited:
		return ErrRateLimited
	case ResultRequestLocked:
		return ErrRequestLocked
	case ResultInvalidMessage:
		return ErrInvalidMessage
	case ResultChannelError:
		return ErrChannel
	case ResultClientClosed:
		return ErrClientClosed
	case ResultDuplicateMsgID:
		return ErrDuplicateMsgID
	default:
		return ErrChannel
	}
}
