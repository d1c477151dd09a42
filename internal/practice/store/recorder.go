// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     store
// Description: Persists feedback results and session summaries
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package store

import (
	"context"
	"time"

	"github.com/msto63/hatsuon/internal/practice/bus"
	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/internal/practice/lesson"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

const writeTimeout = 2 * time.Second

// Recorder writes results published on the feedback bus and finished
// sessions to a history store. Write failures are logged; practice goes on.
type Recorder struct {
	store  HistoryStore
	logger *logging.Logger
}

// NewRecorder creates a recorder
func NewRecorder(store HistoryStore, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Recorder{store: store, logger: logger}
}

// Attach subscribes the recorder to b and returns the unsubscribe function
func (r *Recorder) Attach(b *bus.Bus) func() {
	return b.Subscribe(r.OnFeedback)
}

// OnFeedback stores result events; other kinds are ignored
func (r *Recorder) OnFeedback(ev feedback.Event) {
	if ev.Kind != feedback.KindResult || ev.Result == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	entry := &ResultEntry{
		AttemptID:     ev.AttemptID,
		LessonID:      ev.LessonID,
		Score:         ev.Result.Score,
		Label:         ev.Result.Label,
		Transcription: ev.Result.Transcription,
		ExpectedText:  ev.Result.ExpectedText,
		Analysis:      ev.Result.Analysis,
		RecordedAt:    ev.Received,
	}
	if err := r.store.RecordResult(ctx, entry); err != nil {
		r.logger.Warn("Failed to record result", "lesson_id", ev.LessonID, "error", err)
	}
}

// OnComplete stores a finished session; it fits lesson.Options.OnComplete
func (r *Recorder) OnComplete(s lesson.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.store.SaveSession(ctx, SessionFromSummary(s)); err != nil {
		r.logger.Warn("Failed to save session", "error", err)
	}
}

// SessionFromSummary converts a lesson summary into a session entry
func SessionFromSummary(s lesson.Summary) *SessionEntry {
	scores := make([]SessionScore, len(s.Scores))
	for i, e := range s.Scores {
		scores[i] = SessionScore{LessonID: e.LessonID, Score: e.Score}
	}
	return &SessionEntry{
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Aggregate:  s.Aggregate,
		Lessons:    s.Lessons,
		Skipped:    s.Skipped,
		Scores:     scores,
	}
}
