// Package relay runs one phone call: it bridges the telephony media stream
// and the AI agent session, converting audio both ways and brokering agent
// actions, until either side ends the call.
package relay

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a call stream.
type State int

const (
	// StateAwaitingStart - connection open, waiting for the start frame.
	StateAwaitingStart State = iota
	// StateActive - call identified, audio flowing both ways.
	StateActive
	// StateTerminating - one leg ended, the other is being shut down.
	StateTerminating
	// StateClosed - both legs closed. Terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "AWAITING_START"
	case StateActive:
		return "ACTIVE"
	case StateTerminating:
		return "TERMINATING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true once no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Errors for invalid state transitions.
var (
	ErrAlreadyActive = errors.New("stream is already active")
	ErrStreamEnded   = errors.New("stream has ended")
)

// Lifecycle manages the state machine for a single call stream.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	AWAITING_START → ACTIVE → TERMINATING → CLOSED
//
// Terminate may also fire straight from AWAITING_START when the connection
// dies before a start frame ever arrives.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in AWAITING_START state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateAwaitingStart}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Activate transitions AWAITING_START → ACTIVE.
func (l *Lifecycle) Activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateAwaitingStart:
		l.state = StateActive
		return nil
	case StateActive:
		return ErrAlreadyActive
	default:
		return ErrStreamEnded
	}
}

// Terminate begins shutdown. Returns true if this call initiated it,
// false if shutdown had already begun or finished.
func (l *Lifecycle) Terminate() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateTerminating || l.state == StateClosed {
		return false
	}
	l.state = StateTerminating
	return true
}

// Close marks the stream fully closed. Can be called from any state.
// Idempotent.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateClosed
}
