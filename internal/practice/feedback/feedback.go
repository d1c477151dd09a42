// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     feedback
// Description: Feedback events and classification of backend messages
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

// Package feedback defines the events a streaming attempt produces and the
// parser that classifies inbound backend messages into them.
package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

// Kind discriminates feedback events
type Kind int

const (
	// KindChunkAck acknowledges received audio
	KindChunkAck Kind = iota

	// KindResult carries the pronunciation assessment
	KindResult

	// KindError reports a failure of the attempt
	KindError
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindChunkAck:
		return "chunk-ack"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ChunkAck is the backend's receipt for one audio chunk
type ChunkAck struct {
	ChunkSize   int `json:"chunk_size"`
	TotalChunks int `json:"total_chunks"`
}

// Result is the backend's assessment of one attempt
type Result struct {
	Score         float64                    `json:"score"`
	Label         string                     `json:"label"`
	Transcription string                     `json:"transcription"`
	ExpectedText  string                     `json:"expected_text"`
	Analysis      map[string]json.RawMessage `json:"analysis,omitempty"`
}

// Failure describes an error event
type Failure struct {
	Code    hterror.Code `json:"code"`
	Message string       `json:"message"`

	// Detail holds diagnostic text that is not shown to the learner
	Detail string `json:"detail,omitempty"`
}

// Event is one feedback event of an attempt
type Event struct {
	Kind      Kind
	AttemptID string
	LessonID  string
	Received  time.Time

	Ack     *ChunkAck
	Result  *Result
	Failure *Failure
}

// Err returns the failure as an error, or nil for non-error events
func (e Event) Err() error {
	if e.Kind != KindError || e.Failure == nil {
		return nil
	}
	err := hterror.New(e.Failure.Message).WithCode(e.Failure.Code)
	if e.Failure.Detail != "" {
		err = err.WithDetail("detail", e.Failure.Detail)
	}
	return err
}

// String returns a compact description for logs
func (e Event) String() string {
	switch {
	case e.Kind == KindChunkAck && e.Ack != nil:
		return fmt.Sprintf("chunk-ack(size=%d total=%d)", e.Ack.ChunkSize, e.Ack.TotalChunks)
	case e.Kind == KindResult && e.Result != nil:
		return fmt.Sprintf("result(score=%.1f label=%q)", e.Result.Score, e.Result.Label)
	case e.Kind == KindError && e.Failure != nil:
		return fmt.Sprintf("error(%s: %s)", e.Failure.Code, e.Failure.Message)
	default:
		return e.Kind.String()
	}
}

// Stamp returns a copy of the event tagged with attempt and lesson
func (e Event) Stamp(attemptID, lessonID string) Event {
	e.AttemptID = attemptID
	e.LessonID = lessonID
	return e
}

// Failed builds an error event
func Failed(code hterror.Code, message string) Event {
	return Event{
		Kind:     KindError,
		Received: time.Now(),
		Failure:  &Failure{Code: code, Message: message},
	}
}

// FromError builds an error event from err, keeping its code
func FromError(err error) Event {
	code := hterror.GetCode(err)
	if code == hterror.CodeUnknown {
		code = hterror.CodeInternal
	}

	var he *hterror.Error
	if errors.As(err, &he) {
		ev := Failed(code, he.Message())
		if cause := he.Unwrap(); cause != nil {
			ev.Failure.Detail = cause.Error()
		}
		return ev
	}
	return Failed(code, err.Error())
}

// Score thresholds for default labels
const (
	perfectScore = 95
	greatScore   = 80
	almostScore  = 60
)

// DefaultLabel returns the label for a score when the backend sends none
func DefaultLabel(score float64) string {
	switch {
	case score >= perfectScore:
		return "Perfect!"
	case score >= greatScore:
		return "Great job!"
	case score >= almostScore:
		return "Almost there!"
	default:
		return "Needs practice"
	}
}
