package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/piscesgamedev/pisces/pkg/log"
)

// Common lifecycle errors.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrClosed            = errors.New("closed")
)

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateDisconnected: {StateConnecting, StateClosed},
	StateConnecting:   {StateConnected, StateDisconnected, StateClosed},
	StateConnected:    {StateReconnecting, StateDisconnected, StateClosed},
	StateReconnecting: {StateConnected, StateDisconnected, StateClosed},
	StateClosed:       {},
}

// DefaultManager implements Manager. Reads are safe from any goroutine;
// transitions are expected to come from a single owner.
type DefaultManager struct {
	mu           sync.RWMutex
	state        State
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewManager creates a new lifecycle manager in StateDisconnected.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &DefaultManager{
		state:        StateDisconnected,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current connection state.
func (l *DefaultManager) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// CanTransition reports whether from -> to is a valid transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo attempts to transition to a new state.
// Returns an error if the transition is not valid.
func (l *DefaultManager) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if oldState == StateClosed {
		l.mu.Unlock()
		return ErrClosed
	}
	if !CanTransition(oldState, newState) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldState, newState)
	}

	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

// CanConnect returns true if Connect() may start an attempt.
func (l *DefaultManager) CanConnect() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateDisconnected || l.state == StateReconnecting
}

// IsClosed returns true once the manager reached StateClosed.
func (l *DefaultManager) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateClosed
}
