// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     stream
// Description: Attempt lifecycle state machine
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package stream

import (
	"sync"
	"time"
)

// State represents the lifecycle state of one attempt
type State int

const (
	// StateIdle - Created, not started
	StateIdle State = iota

	// StateRequesting - Acquiring microphone, format and connection
	StateRequesting

	// StateStreaming - Recording and sending chunks
	StateStreaming

	// StateStopping - Encoder finalizing, stop message pending
	StateStopping

	// StateAwaitingFeedback - Waiting for the backend's result
	StateAwaitingFeedback

	// StateClosed - Result delivered, channel closed
	StateClosed

	// StateErrored - Attempt failed
	StateErrored
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateAwaitingFeedback:
		return "awaiting-feedback"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Icon returns an icon for the state
func (s State) Icon() string {
	switch s {
	case StateIdle:
		return "⏸"
	case StateRequesting:
		return "…"
	case StateStreaming:
		return "🎤"
	case StateStopping, StateAwaitingFeedback:
		return "⚙️"
	case StateClosed:
		return "✔"
	case StateErrored:
		return "❌"
	default:
		return "?"
	}
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// validTransitions lists the allowed successors of every state
var validTransitions = map[State][]State{
	StateIdle:             {StateRequesting, StateErrored},
	StateRequesting:       {StateStreaming, StateErrored},
	StateStreaming:        {StateStopping, StateErrored},
	StateStopping:         {StateAwaitingFeedback, StateErrored},
	StateAwaitingFeedback: {StateClosed, StateErrored},
}

// StateMachine manages state transitions
type StateMachine struct {
	mu            sync.RWMutex
	currentState  State
	previousState State
	stateTime     time.Time
	listeners     []StateChangeListener
	settled       chan struct{}
}

// StateChangeListener is called when state changes
type StateChangeListener func(oldState, newState State)

// NewStateMachine creates a new state machine in StateIdle
func NewStateMachine() *StateMachine {
	return &StateMachine{
		currentState: StateIdle,
		stateTime:    time.Now(),
		settled:      make(chan struct{}),
	}
}

// Current returns the current state
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// Previous returns the previous state
func (sm *StateMachine) Previous() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.previousState
}

// StateDuration returns how long we've been in the current state
func (sm *StateMachine) StateDuration() time.Duration {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return time.Since(sm.stateTime)
}

// Settled is closed once a terminal state is entered
func (sm *StateMachine) Settled() <-chan struct{} {
	return sm.settled
}

// Transition changes to a new state. It reports false when the transition is
// not allowed from the current state.
func (sm *StateMachine) Transition(newState State) bool {
	sm.mu.Lock()
	oldState := sm.currentState

	if !isValidTransition(oldState, newState) {
		sm.mu.Unlock()
		return false
	}

	sm.previousState = oldState
	sm.currentState = newState
	sm.stateTime = time.Now()
	listeners := sm.listeners
	if newState.Terminal() {
		close(sm.settled)
	}
	sm.mu.Unlock()

	for _, listener := range listeners {
		listener(oldState, newState)
	}

	return true
}

// AddListener adds a state change listener
func (sm *StateMachine) AddListener(listener StateChangeListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

func isValidTransition(from, to State) bool {
	for _, valid := range validTransitions[from] {
		if valid == to {
			return true
		}
	}
	return false
}
