// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     transport
// Description: Duplex channel contract between an attempt and the backend
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

// Package transport carries audio chunks and the stop control message to the
// scoring backend and delivers its replies as lifecycle events.
//
// Delivery is best effort: Send and SendControl drop their payload unless the
// channel is open. There is no queue and no reconnection.
package transport

import (
	"context"
	"fmt"

	"github.com/msto63/hatsuon/internal/practice/feedback"
)

// StopMessage is the control message signaling end of utterance
const StopMessage = `{"action":"stop"}`

// Close codes reported by Closed events
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// State is the lifecycle state of a channel
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventType discriminates channel events
type EventType int

const (
	EventOpened EventType = iota
	EventMessage
	EventError
	EventClosed
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one lifecycle callback of a channel
type Event struct {
	Type EventType

	// Feedback is the classified inbound message (EventMessage)
	Feedback feedback.Event

	// Err is the transport failure (EventError)
	Err error

	// Code and Reason describe the closure (EventClosed)
	Code   int
	Reason string
}

// String returns a compact description for logs
func (e Event) String() string {
	switch e.Type {
	case EventMessage:
		return "message " + e.Feedback.String()
	case EventError:
		return fmt.Sprintf("error %v", e.Err)
	case EventClosed:
		return fmt.Sprintf("closed %d %q", e.Code, e.Reason)
	default:
		return e.Type.String()
	}
}

// Channel is one connection of one attempt. Events delivers Opened first and
// Closed last, then is closed.
type Channel interface {
	Events() <-chan Event
	// Send transmits one binary chunk; it reports false if the chunk was dropped
	Send(data []byte) bool
	// SendControl transmits StopMessage at most once while open
	SendControl() bool
	// Close requests graceful shutdown; redundant calls are no-ops
	Close() error
	State() State
}

// Dialer opens channels addressed by lesson id
type Dialer interface {
	Open(ctx context.Context, lessonID string) (Channel, error)
}
