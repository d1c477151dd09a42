// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     lesson
// Description: Lesson session controller driving per-utterance state
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

// Package lesson drives a practice session over an ordered list of
// utterances. It consumes feedback events, tracks the score of the current
// utterance and accumulates the session aggregate.
package lesson

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/bus"
	"github.com/msto63/hatsuon/internal/practice/catalog"
	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

// DefaultSuccessThreshold is the score that completes an utterance
const DefaultSuccessThreshold = 70.0

// Status texts shown for the current utterance
const (
	StatusReady      = "Press space and say the phrase"
	StatusRecording  = "Recording... press space to stop"
	StatusProcessing = "Analyzing your pronunciation..."
	StatusPassed     = "Well done! Continue to the next phrase"
	StatusRetry      = "Keep practicing! Try again or continue"
)

// Phase is the per-utterance UI phase
type Phase int

const (
	PhaseReady Phase = iota
	PhaseRecording
	PhaseProcessing
	PhaseScored
	PhaseFailed
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	case PhaseScored:
		return "scored"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is the per-utterance state rendered by the UI
type View struct {
	Utterance catalog.Utterance
	Index     int
	Total     int

	Phase         Phase
	Scored        bool
	Score         float64
	Label         string
	Transcription string
	ExpectedText  string
	Analysis      map[string]json.RawMessage

	// Complete is set once a score reached the threshold and stays set
	// until another utterance begins
	Complete    bool
	AckedChunks int
	Status      string
	Err         error

	// SessionDone is set after the last continue or skip
	SessionDone bool
	Aggregate   float64
}

// Entry is one recorded score of the session
type Entry struct {
	LessonID string
	Score    float64
}

// Progress is the session state mutated by Continue and Skip
type Progress struct {
	Scores   []Entry
	Index    int
	Complete bool
	Skipped  int
	Finished bool
}

// Summary describes a finished session
type Summary struct {
	Scores     []Entry
	Aggregate  float64
	Lessons    int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome is the result of Continue or Skip
type Outcome struct {
	Next      *catalog.Utterance
	Finished  bool
	Aggregate float64
}

// Options configures a controller
type Options struct {
	// Threshold in (0,100]; zero selects DefaultSuccessThreshold
	Threshold float64
	// OnComplete runs after the session finished, outside the controller lock
	OnComplete func(Summary)
}

// Controller is safe for use from the feedback bus and the UI concurrently
type Controller struct {
	order      []catalog.Utterance
	threshold  float64
	onComplete func(Summary)
	logger     *logging.Logger

	mu        sync.Mutex
	view      View
	progress  Progress
	startedAt time.Time
}

// NewController creates a controller over the catalog in session order
func NewController(utterances []catalog.Utterance, opts Options, logger *logging.Logger) (*Controller, error) {
	if len(utterances) == 0 {
		return nil, hterror.New("catalog is empty").
			WithCode(hterror.CodeInvalidInput).
			WithOperation("lesson.new")
	}
	if opts.Threshold < 0 || opts.Threshold > 100 {
		return nil, hterror.Newf("success threshold %v outside (0,100]", opts.Threshold).
			WithCode(hterror.CodeInvalidInput).
			WithOperation("lesson.new")
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultSuccessThreshold
	}
	if logger == nil {
		logger = logging.Nop()
	}

	c := &Controller{
		order:      Order(utterances),
		threshold:  opts.Threshold,
		onComplete: opts.OnComplete,
		logger:     logger,
	}
	c.resetLocked()
	return c, nil
}

// Threshold returns the success threshold
func (c *Controller) Threshold() float64 {
	return c.threshold
}

// Utterances returns the session order
func (c *Controller) Utterances() []catalog.Utterance {
	return append([]catalog.Utterance(nil), c.order...)
}

// Current returns the utterance being practiced
func (c *Controller) Current() catalog.Utterance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Utterance
}

// Snapshot returns a copy of the current view
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	if v.Analysis != nil {
		v.Analysis = copyAnalysis(v.Analysis)
	}
	return v
}

// Progress returns a copy of the session progress
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress
	p.Scores = append([]Entry(nil), p.Scores...)
	return p
}

// Begin makes u the current utterance and resets its state. Session
// progress is not changed.
func (c *Controller) Begin(u catalog.Utterance) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(u.ID)
	if idx < 0 {
		return hterror.Newf("lesson %q is not part of this session", u.ID).
			WithCode(hterror.CodeNotFound).
			WithOperation("lesson.begin")
	}
	if c.progress.Finished {
		return hterror.New("session already finished").
			WithCode(hterror.CodeInvalidState).
			WithOperation("lesson.begin")
	}
	c.beginLocked(idx)
	return nil
}

// BeginID is Begin by lesson id
func (c *Controller) BeginID(id string) error {
	u, ok := catalog.Find(c.order, id)
	if !ok {
		return hterror.Newf("lesson %q is not part of this session", id).
			WithCode(hterror.CodeNotFound).
			WithOperation("lesson.begin")
	}
	return c.Begin(u)
}

// beginLocked resets the view. The completion flag belongs to the progress
// and survives beginning the same utterance again.
func (c *Controller) beginLocked(idx int) {
	if idx != c.progress.Index {
		c.progress.Index = idx
		c.progress.Complete = false
	}
	c.view = View{
		Utterance: c.order[idx],
		Index:     idx,
		Total:     len(c.order),
		Phase:     PhaseReady,
		Complete:  c.progress.Complete,
		Status:    StatusReady,
	}
}

func (c *Controller) indexOf(id string) int {
	for i, u := range c.order {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// MarkRecording reflects that an attempt started streaming
func (c *Controller) MarkRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearAttemptLocked()
	c.view.Phase = PhaseRecording
	c.view.Status = StatusRecording
}

// MarkProcessing reflects that recording stopped and feedback is pending
func (c *Controller) MarkProcessing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view.Phase != PhaseRecording {
		return
	}
	c.view.Phase = PhaseProcessing
	c.view.Status = StatusProcessing
}

// OnFeedback applies one feedback event. Events addressed to another lesson
// are ignored.
func (c *Controller) OnFeedback(ev feedback.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress.Finished {
		return
	}
	if ev.LessonID != "" && ev.LessonID != c.view.Utterance.ID {
		c.logger.Debug("Feedback for other lesson ignored", "lesson_id", ev.LessonID, "current", c.view.Utterance.ID)
		return
	}

	switch ev.Kind {
	case feedback.KindChunkAck:
		// Acks only move the counter so their arrival order is irrelevant
		if ev.Ack != nil && ev.Ack.TotalChunks > c.view.AckedChunks {
			c.view.AckedChunks = ev.Ack.TotalChunks
		}

	case feedback.KindResult:
		if ev.Result == nil {
			return
		}
		r := ev.Result
		c.view.Phase = PhaseScored
		c.view.Scored = true
		c.view.Score = r.Score
		c.view.Label = r.Label
		c.view.Transcription = r.Transcription
		c.view.ExpectedText = r.ExpectedText
		c.view.Analysis = copyAnalysis(r.Analysis)
		c.view.Err = nil
		if r.Score >= c.threshold {
			c.view.Complete = true
			c.progress.Complete = true
		}
		if c.view.Complete {
			c.view.Status = StatusPassed
		} else {
			c.view.Status = StatusRetry
		}
		c.logger.Info("Result received", "lesson_id", c.view.Utterance.ID, "score", r.Score, "complete", c.view.Complete)

	case feedback.KindError:
		err := ev.Err()
		if err == nil {
			return
		}
		c.view.Phase = PhaseFailed
		c.view.Err = err
		c.view.Status = ev.Failure.Message
	}
}

// Attach subscribes the controller to b and returns the unsubscribe function
func (c *Controller) Attach(b *bus.Bus) func() {
	return b.Subscribe(c.OnFeedback)
}

// Retry clears score and transcription of the current utterance; session
// progress is untouched
func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearAttemptLocked()
	c.view.Phase = PhaseReady
	c.view.Status = StatusReady
}

func (c *Controller) clearAttemptLocked() {
	c.view.Scored = false
	c.view.Score = 0
	c.view.Label = ""
	c.view.Transcription = ""
	c.view.ExpectedText = ""
	c.view.Analysis = nil
	c.view.AckedChunks = 0
	c.view.Err = nil
}

// Continue records the current score, if any, and advances
func (c *Controller) Continue() (Outcome, error) {
	return c.advance(true)
}

// Skip advances without recording a score
func (c *Controller) Skip() (Outcome, error) {
	return c.advance(false)
}

func (c *Controller) advance(record bool) (Outcome, error) {
	c.mu.Lock()

	if c.progress.Finished {
		c.mu.Unlock()
		return Outcome{}, hterror.New("session already finished").
			WithCode(hterror.CodeInvalidState).
			WithOperation("lesson.advance")
	}

	if record && c.view.Scored {
		c.progress.Scores = append(c.progress.Scores, Entry{LessonID: c.view.Utterance.ID, Score: c.view.Score})
	} else if !record {
		c.progress.Skipped++
	}

	next := c.progress.Index + 1
	if next < len(c.order) {
		c.beginLocked(next)
		u := c.order[next]
		c.mu.Unlock()
		return Outcome{Next: &u}, nil
	}

	scores := make([]float64, len(c.progress.Scores))
	for i, e := range c.progress.Scores {
		scores[i] = e.Score
	}
	aggregate := Mean(scores)
	c.progress.Finished = true
	c.view.SessionDone = true
	c.view.Aggregate = aggregate
	c.view.Status = fmt.Sprintf("Session complete! Score %.0f%%", aggregate)

	summary := Summary{
		Scores:     append([]Entry(nil), c.progress.Scores...),
		Aggregate:  aggregate,
		Lessons:    len(c.order),
		Skipped:    c.progress.Skipped,
		StartedAt:  c.startedAt,
		FinishedAt: time.Now(),
	}
	hook := c.onComplete
	c.mu.Unlock()

	c.logger.Info("Session complete", "aggregate", aggregate, "recorded", len(summary.Scores), "skipped", summary.Skipped)
	if hook != nil {
		hook(summary)
	}
	return Outcome{Finished: true, Aggregate: aggregate}, nil
}

// Reset discards all progress and begins the first utterance again
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.progress = Progress{}
	c.startedAt = time.Now()
	c.beginLocked(0)
}

func copyAnalysis(src map[string]json.RawMessage) map[string]json.RawMessage {
	if src == nil {
		return nil
	}
	dst := make(map[string]json.RawMessage, len(src))
	for k, v := range src {
		dst[k] = append(json.RawMessage(nil), v...)
	}
	return dst
}
