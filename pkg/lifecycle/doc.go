// Package lifecycle provides the connection state machine of a session.
//
// # Usage
//
//	manager := lifecycle.NewManager(logger, eventEmitter)
//
//	if !manager.CanConnect() {
//	    return ErrAlreadyConnected
//	}
//	if err := manager.TransitionTo(lifecycle.StateConnecting, "connect called"); err != nil {
//	    return err
//	}
//
// # State Machine
//
// Valid state transitions:
//   - Disconnected -> Connecting, Closed
//   - Connecting -> Connected, Disconnected, Closed
//   - Connected -> Reconnecting, Disconnected, Closed
//   - Reconnecting -> Connected, Disconnected, Closed
//   - Closed is terminal
//
// Backoff computes the delay between reconnect attempts.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
