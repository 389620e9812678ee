package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateAccepting - Connection accepted, strategy not built yet.
	StateAccepting State = iota
	// StateReady - Strategy built, ready event pending.
	StateReady
	// StateStreaming - Audio and control messages are being processed.
	StateStreaming
	// StateFinishing - Stop or disconnect seen, flush in progress.
	StateFinishing
	// StateClosed - Resources released. Terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAccepting:
		return "ACCEPTING"
	case StateReady:
		return "READY"
	case StateStreaming:
		return "STREAMING"
	case StateFinishing:
		return "FINISHING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid transitions and emissions.
var (
	ErrSessionClosed     = errors.New("session is closed")
	ErrTerminalEmitted   = errors.New("terminal event already emitted")
	ErrNotStreaming      = errors.New("interim events require the streaming state")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	ACCEPTING → READY → STREAMING → FINISHING → CLOSED
//	    │                                          ▲
//	    └──────────── construction failure ────────┘
//
// Rules:
//   - Interim events (partial, utterance final) only while STREAMING
//   - Exactly one terminal event (final or error) per session
//   - Nothing is emitted after the terminal event
//   - Close is allowed from any state and is idempotent
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	terminal bool
}

// NewLifecycle creates a lifecycle in ACCEPTING state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateAccepting}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TerminalEmitted reports whether the final or error event was sent.
func (l *Lifecycle) TerminalEmitted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.terminal
}

// Ready transitions ACCEPTING → READY.
func (l *Lifecycle) Ready() error {
	return l.transition(StateAccepting, StateReady)
}

// Stream transitions READY → STREAMING.
func (l *Lifecycle) Stream() error {
	return l.transition(StateReady, StateStreaming)
}

// Finish transitions to FINISHING from READY or STREAMING.
func (l *Lifecycle) Finish() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateReady, StateStreaming:
		l.state = StateFinishing
		return nil
	case StateFinishing:
		return nil
	case StateClosed:
		return ErrSessionClosed
	default:
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, l.state, StateFinishing)
	}
}

func (l *Lifecycle) transition(from, to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateClosed {
		return ErrSessionClosed
	}
	if l.state != from {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, l.state, to)
	}
	l.state = to
	return nil
}

// EmitInterim validates an interim emission.
func (l *Lifecycle) EmitInterim() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch {
	case l.state == StateClosed:
		return ErrSessionClosed
	case l.terminal:
		return ErrTerminalEmitted
	case l.state != StateStreaming:
		return ErrNotStreaming
	default:
		return nil
	}
}

// EmitTerminal validates and records the terminal emission. Only the first
// call succeeds.
func (l *Lifecycle) EmitTerminal() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateClosed {
		return ErrSessionClosed
	}
	if l.terminal {
		return ErrTerminalEmitted
	}
	l.terminal = true
	return nil
}

// Close transitions to CLOSED. Idempotent.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateClosed
}
