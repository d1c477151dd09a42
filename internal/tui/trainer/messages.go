// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     trainer
// Description: Message types for async operations in the practice TUI
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package trainer

import (
	"time"

	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/internal/practice/stream"
)

// Message types for tea.Cmd async operations

// attemptStartedMsg is sent when StartStreaming returned
type attemptStartedMsg struct {
	attempt *stream.Attempt
	err     error
}

// feedbackMsg is sent for each event published on the feedback bus
type feedbackMsg struct {
	event feedback.Event
}

// feedbackClosedMsg is sent once the forwarding channel is closed
type feedbackClosedMsg struct{}

// audioPlayedMsg is sent when reference playback ended
type audioPlayedMsg struct {
	err error
}

// prefetchedMsg is sent when reference audio prefetching finished
type prefetchedMsg struct {
	failed int
	err    error
}

// tickMsg drives the recording timer
type tickMsg time.Time
