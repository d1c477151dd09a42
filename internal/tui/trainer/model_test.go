// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     trainer
// Description: Tests for the practice TUI model
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package trainer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/capture"
	"github.com/msto63/hatsuon/internal/practice/catalog"
	"github.com/msto63/hatsuon/internal/practice/device"
	"github.com/msto63/hatsuon/internal/practice/encoder"
	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/internal/practice/lesson"
	"github.com/msto63/hatsuon/internal/practice/stream"
	"github.com/msto63/hatsuon/internal/practice/transport"
)

var phrases = []catalog.Utterance{
	{ID: "1", Text: "こんにちは", Romaji: "konnichiwa", Translation: "Hello"},
	{ID: "2", Text: "ありがとう", Romaji: "arigatou", Translation: "Thank you"},
}

// micSource yields a few silent frames per acquisition
type micSource struct {
	err error
}

func (s *micSource) Acquire(ctx context.Context) (capture.Stream, error) {
	if s.err != nil {
		return nil, s.err
	}
	fs := capture.NewFrameStream(16000, 1, 32, nil)
	for i := 0; i < 5; i++ {
		fs.Push(make([]int16, 320))
	}
	go func() {
		<-fs.Stopped()
		fs.Finish()
	}()
	return fs, nil
}

// scoringChannel answers the stop message with a fixed result
type scoringChannel struct {
	mu     sync.Mutex
	open   bool
	events chan transport.Event
	result string
}

func (c *scoringChannel) Events() <-chan transport.Event { return c.events }

func (c *scoringChannel) State() transport.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return transport.StateOpen
	}
	return transport.StateClosed
}

func (c *scoringChannel) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *scoringChannel) SendControl() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return false
	}
	c.events <- transport.Event{Type: transport.EventMessage, Feedback: feedback.Parse([]byte(c.result))}
	return true
}

func (c *scoringChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	c.open = false
	c.events <- transport.Event{Type: transport.EventClosed, Code: transport.CloseNormal}
	close(c.events)
	return nil
}

type scoringDialer struct {
	result string
}

func (d *scoringDialer) Open(ctx context.Context, lessonID string) (transport.Channel, error) {
	c := &scoringChannel{open: true, events: make(chan transport.Event, 16), result: d.result}
	c.events <- transport.Event{Type: transport.EventOpened}
	return c, nil
}

type memoryAudio struct {
	data map[string][]byte
}

func (a *memoryAudio) Get(ctx context.Context, id string) ([]byte, error) {
	data, ok := a.data[id]
	if !ok {
		return nil, hterror.New("no reference audio").WithCode(hterror.CodeNotFound)
	}
	return data, nil
}

type recordingPlayer struct {
	mu    sync.Mutex
	rates []device.Rate
}

func (p *recordingPlayer) PlayWAV(ctx context.Context, data []byte, rate device.Rate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rates = append(p.rates, rate)
	return nil
}

type fixture struct {
	ctrl   *lesson.Controller
	engine *stream.Engine
	audio  AudioSource
	player AudioPlayer
}

func newModel(t *testing.T, source capture.Source, result string, f *fixture) Model {
	t.Helper()
	ctrl, err := lesson.NewController(phrases, lesson.Options{}, nil)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	opts := stream.Options{
		Cadence:         10 * time.Millisecond,
		CloseGrace:      10 * time.Millisecond,
		FeedbackTimeout: 2 * time.Second,
		Formats:         []string{encoder.MIMEWAV},
	}
	engine := stream.NewEngine(opts, source, &scoringDialer{result: result}, nil, nil, nil)

	cfg := Config{Controller: ctrl, Engine: engine}
	if f != nil {
		cfg.Audio = f.audio
		cfg.Player = f.player
		f.ctrl = ctrl
		f.engine = engine
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(m.Shutdown)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func press(m Model, key string) (Model, tea.Cmd) {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	if key == " " {
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// run executes cmd and feeds its message back into the model
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

// awaitFeedback feeds bus events into the model until one of kind arrives
func awaitFeedback(t *testing.T, m Model, kind feedback.Kind) Model {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		msgs := make(chan tea.Msg, 1)
		go func() { msgs <- m.waitForFeedback()() }()
		select {
		case msg := <-msgs:
			next, _ := m.Update(msg)
			m = next.(Model)
			if fm, ok := msg.(feedbackMsg); ok && fm.event.Kind == kind {
				return m
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
			return m
		}
	}
}

const passingResult = `{"status":"result","score":85,"label":"Great job!","transcription":"konnichiwa","expected_text":"konnichiwa","pitch":"flat"}`

func TestNewRequiresParts(t *testing.T) {
	if _, err := New(Config{}); !hterror.HasCode(err, hterror.CodeInvalidInput) {
		t.Errorf("New(empty) error = %v, want INVALID_INPUT", err)
	}
}

func TestRecordAndScore(t *testing.T) {
	f := &fixture{}
	m := newModel(t, &micSource{}, passingResult, f)

	m, cmd := press(m, " ")
	if got := f.ctrl.Snapshot().Phase; got != lesson.PhaseRecording {
		t.Fatalf("phase after space = %s, want recording", got)
	}
	m = run(t, m, cmd)
	if m.attempt == nil {
		t.Fatal("attempt not started")
	}

	// A second space while recording stops
	m, _ = press(m, " ")
	if got := f.ctrl.Snapshot().Phase; got != lesson.PhaseProcessing {
		t.Fatalf("phase after stop = %s, want processing", got)
	}
	if !strings.Contains(m.View(), lesson.StatusProcessing) {
		t.Error("view does not show processing status")
	}

	m = awaitFeedback(t, m, feedback.KindResult)
	view := f.ctrl.Snapshot()
	if view.Phase != lesson.PhaseScored || view.Score != 85 || !view.Complete {
		t.Fatalf("view = %+v, want scored 85 complete", view)
	}

	out := m.View()
	for _, want := range []string{"85%", "Great job!", "konnichiwa", "pitch"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m, _ = press(m, "c")
	p := f.ctrl.Progress()
	if len(p.Scores) != 1 || p.Scores[0].Score != 85 || p.Index != 1 {
		t.Errorf("progress after continue = %+v", p)
	}
	if !strings.Contains(m.View(), "ありがとう") {
		t.Error("view does not show the next phrase")
	}
}

func TestRecordPermissionDenied(t *testing.T) {
	f := &fixture{}
	src := &micSource{err: capture.PermissionDenied(nil, "microphone access denied")}
	m := newModel(t, src, passingResult, f)

	m, cmd := press(m, " ")
	m = run(t, m, cmd)
	if m.attempt != nil || m.starting {
		t.Fatal("failed attempt kept as running")
	}

	m = awaitFeedback(t, m, feedback.KindError)
	view := f.ctrl.Snapshot()
	if view.Phase != lesson.PhaseFailed || !hterror.HasCode(view.Err, hterror.CodePermissionDenied) {
		t.Fatalf("view = %+v, want failed with PERMISSION_DENIED", view)
	}
	if !strings.Contains(m.View(), "microphone access denied") {
		t.Error("view does not show the error")
	}

	// A new attempt is possible after the failure
	m, cmd = press(m, " ")
	if cmd == nil || !m.starting {
		t.Error("space after failure did not start a new attempt")
	}
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	f := &fixture{}
	m := newModel(t, &micSource{}, passingResult, f)
	f.ctrl.MarkRecording()

	for _, key := range []string{"c", "r"} {
		t.Run(key, func(t *testing.T) {
			press(m, key)
			if got := f.ctrl.Progress().Index; got != 0 {
				t.Errorf("index = %d, want 0", got)
			}
			if got := f.ctrl.Snapshot().Phase; got != lesson.PhaseRecording {
				t.Errorf("phase = %s, want recording", got)
			}
		})
	}
}

func TestRetryClearsScore(t *testing.T) {
	f := &fixture{}
	m := newModel(t, &micSource{}, passingResult, f)
	f.ctrl.OnFeedback(feedback.Event{Kind: feedback.KindResult, LessonID: "1", Result: &feedback.Result{Score: 40, Label: "Needs practice"}})

	press(m, "r")
	view := f.ctrl.Snapshot()
	if view.Scored || view.Score != 0 || view.Phase != lesson.PhaseReady {
		t.Errorf("view after retry = %+v", view)
	}
}

func TestSkipToSessionEnd(t *testing.T) {
	f := &fixture{}
	m := newModel(t, &micSource{}, passingResult, f)

	m, _ = press(m, "s")
	m, _ = press(m, "s")
	view := f.ctrl.Snapshot()
	if !view.SessionDone || f.ctrl.Progress().Skipped != 2 {
		t.Fatalf("view = %+v, want finished with 2 skips", view)
	}
	if !strings.Contains(m.View(), "Session complete!") {
		t.Error("summary not rendered")
	}

	// Recording is disabled once finished
	if _, cmd := press(m, " "); cmd != nil {
		t.Error("space started an attempt after the session finished")
	}

	m, _ = press(m, "n")
	if f.ctrl.Snapshot().SessionDone || f.ctrl.Progress().Skipped != 0 {
		t.Error("new session did not reset progress")
	}
}

func TestPlayReference(t *testing.T) {
	player := &recordingPlayer{}
	f := &fixture{
		audio:  &memoryAudio{data: map[string][]byte{"1": []byte("RIFF")}},
		player: player,
	}
	m := newModel(t, &micSource{}, passingResult, f)

	tests := []struct {
		key  string
		want device.Rate
	}{
		{"p", device.RateNormal},
		{"P", device.RateSlow},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			next, cmd := press(m, tt.key)
			if !next.playing {
				t.Fatal("playing flag not set")
			}
			// A second press while playing is ignored
			if _, again := press(next, tt.key); again != nil {
				t.Error("second press started playback again")
			}
			next = run(t, next, cmd)
			if next.playing || next.notice != "" {
				t.Errorf("after playback playing=%v notice=%q", next.playing, next.notice)
			}
		})
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.rates) != 2 || player.rates[0] != device.RateNormal || player.rates[1] != device.RateSlow {
		t.Errorf("rates = %v", player.rates)
	}
}

func TestPlayReferenceMissing(t *testing.T) {
	t.Run("no player", func(t *testing.T) {
		m := newModel(t, &micSource{}, passingResult, nil)
		m, cmd := press(m, "p")
		if cmd != nil || m.notice == "" {
			t.Errorf("cmd = %v, notice = %q", cmd, m.notice)
		}
	})

	t.Run("fetch fails", func(t *testing.T) {
		f := &fixture{audio: &memoryAudio{}, player: &recordingPlayer{}}
		m := newModel(t, &micSource{}, passingResult, f)
		m, cmd := press(m, "p")
		m = run(t, m, cmd)
		if !strings.Contains(m.notice, "no reference audio") {
			t.Errorf("notice = %q", m.notice)
		}
	})
}

func TestQuitReleasesEngine(t *testing.T) {
	f := &fixture{}
	m := newModel(t, &micSource{}, passingResult, f)
	m, cmd := press(m, " ")
	m = run(t, m, cmd)

	_, cmd = press(m, "q")
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command does not quit")
	}
	if f.engine.Current() != nil {
		t.Error("engine still holds an attempt")
	}
	if n := f.engine.Bus().Len(); n != 0 {
		t.Errorf("bus subscribers = %d, want 0", n)
	}
	if _, ok := m.waitForFeedback()().(feedbackClosedMsg); !ok {
		t.Error("feedback wait not released by quit")
	}
}
