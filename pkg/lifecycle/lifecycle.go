package lifecycle

// State represents the connection state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when the connection state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager manages the connection state machine of a session.
type Manager interface {
	// State returns the current connection state.
	State() State

	// CanConnect returns true if a connection attempt may start.
	CanConnect() bool

	// IsClosed returns true once the terminal state has been reached.
	IsClosed() bool

	// TransitionTo attempts to transition to a new state.
	// Returns an error if the transition is not valid.
	TransitionTo(newState State, reason string) error
}
