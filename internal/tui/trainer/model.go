// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     trainer
// Description: Main Bubbletea model for the practice session
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

// Package trainer is the interactive terminal front end of a practice
// session. It renders the lesson controller's view and turns key presses
// into attempts on the streaming engine.
package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/device"
	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/internal/practice/lesson"
	"github.com/msto63/hatsuon/internal/practice/stream"
	"github.com/msto63/hatsuon/pkg/core/logging"
	"github.com/msto63/hatsuon/pkg/core/version"
)

const (
	eventBuffer  = 256
	tickInterval = 200 * time.Millisecond
	panelHeight  = 8
)

// AudioSource returns the reference recording of a lesson as WAV
type AudioSource interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

// Prefetcher is implemented by audio sources that can warm up
type Prefetcher interface {
	Prefetch(ctx context.Context, ids []string) (int, error)
}

// AudioPlayer plays WAV data
type AudioPlayer interface {
	PlayWAV(ctx context.Context, data []byte, rate device.Rate) error
}

// Config holds the session parts the model drives
type Config struct {
	Controller *lesson.Controller
	Engine     *stream.Engine

	// Audio and Player are optional; without them playback keys are disabled
	Audio  AudioSource
	Player AudioPlayer

	Logger *logging.Logger
}

// Model is the main Bubbletea model for the trainer
type Model struct {
	// State
	width     int
	height    int
	ready     bool
	starting  bool
	playing   bool
	notice    string
	startedAt time.Time

	// Session
	ctrl    *lesson.Controller
	engine  *stream.Engine
	audio   AudioSource
	player  AudioPlayer
	logger  *logging.Logger
	attempt *stream.Attempt

	// Feedback forwarding
	ctx      context.Context
	events   chan feedback.Event
	shutdown func()

	// Components
	spinner  spinner.Model
	viewport viewport.Model
}

// New creates a trainer model and subscribes it to the engine's bus
func New(cfg Config) (Model, error) {
	if cfg.Controller == nil || cfg.Engine == nil {
		return Model{}, hterror.New("trainer needs a lesson controller and a streaming engine").
			WithCode(hterror.CodeInvalidInput).
			WithOperation("trainer.new")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan feedback.Event, eventBuffer)

	b := cfg.Engine.Bus()
	detachCtrl := cfg.Controller.Attach(b)
	detachFwd := b.Subscribe(func(ev feedback.Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("Feedback event not forwarded to UI", "kind", ev.Kind.String(), "lesson_id", ev.LessonID)
		}
	})

	engine := cfg.Engine
	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			cancel()
			engine.Close()
			detachFwd()
			detachCtrl()
		})
	}

	return Model{
		ctrl:     cfg.Controller,
		engine:   engine,
		audio:    cfg.Audio,
		player:   cfg.Player,
		logger:   logger,
		ctx:      ctx,
		events:   events,
		shutdown: shutdown,
		spinner:  sp,
	}, nil
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForFeedback(),
		m.prefetch(),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, panelHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
		}
		m.updateViewportContent()

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case attemptStartedMsg:
		m.starting = false
		if msg.err != nil {
			// The failure reaches the controller as an error event
			m.attempt = nil
			m.logger.Debug("Attempt did not start", "error", msg.err)
			return m, nil
		}
		if view := m.ctrl.Snapshot(); view.Phase != lesson.PhaseRecording || view.Utterance.ID != msg.attempt.LessonID() {
			// Skipped while the attempt was starting
			msg.attempt.Close()
			return m, nil
		}
		m.attempt = msg.attempt
		m.startedAt = time.Now()
		cmds = append(cmds, tick())

	case feedbackMsg:
		m.updateViewportContent()
		cmds = append(cmds, m.waitForFeedback())

	case feedbackClosedMsg:
		return m, nil

	case tickMsg:
		if m.ctrl.Snapshot().Phase == lesson.PhaseRecording {
			cmds = append(cmds, tick())
		}

	case audioPlayedMsg:
		m.playing = false
		if msg.err != nil {
			m.notice = "Reference audio: " + errorText(msg.err)
			m.logger.Warn("Reference playback failed", "error", msg.err)
		}

	case prefetchedMsg:
		if msg.err != nil || msg.failed > 0 {
			m.logger.Warn("Reference audio prefetch incomplete", "failed", msg.failed, "error", msg.err)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.ctrl.Snapshot()
	busy := m.starting || view.Phase == lesson.PhaseRecording || view.Phase == lesson.PhaseProcessing

	switch msg.String() {
	case "ctrl+c", "q":
		m.shutdown()
		return m, tea.Quit

	case " ", "space":
		if view.SessionDone {
			return m, nil
		}
		return m.toggleRecording(view)

	case "r":
		if busy || view.SessionDone {
			return m, nil
		}
		m.notice = ""
		m.ctrl.Retry()
		m.updateViewportContent()
		return m, nil

	case "c":
		if busy || view.SessionDone {
			return m, nil
		}
		return m.advance(m.ctrl.Continue)

	case "s":
		if view.SessionDone {
			return m, nil
		}
		if m.attempt != nil {
			m.attempt.Close()
			m.attempt = nil
		}
		m.starting = false
		return m.advance(m.ctrl.Skip)

	case "n":
		if !view.SessionDone {
			return m, nil
		}
		m.ctrl.Reset()
		m.notice = ""
		m.updateViewportContent()
		return m, nil

	case "p":
		return m.playReference(view, device.RateNormal)

	case "P":
		return m.playReference(view, device.RateSlow)

	case "up", "k":
		m.viewport.LineUp(1)
		return m, nil

	case "down", "j":
		m.viewport.LineDown(1)
		return m, nil
	}

	return m, nil
}

// toggleRecording starts an attempt or stops the running one
func (m Model) toggleRecording(view lesson.View) (tea.Model, tea.Cmd) {
	switch {
	case m.starting || view.Phase == lesson.PhaseProcessing:
		return m, nil

	case view.Phase == lesson.PhaseRecording:
		if m.attempt == nil {
			return m, nil
		}
		if err := m.attempt.StopStreaming(); err != nil {
			m.logger.Debug("Stop ignored", "error", err, "state", m.attempt.State().String())
			return m, nil
		}
		m.ctrl.MarkProcessing()
		return m, nil
	}

	m.notice = ""
	m.starting = true
	m.ctrl.MarkRecording()
	m.updateViewportContent()
	return m, m.startAttempt(view.Utterance.ID)
}

// startAttempt replaces the previous attempt and starts streaming
func (m Model) startAttempt(lessonID string) tea.Cmd {
	engine := m.engine
	ctx := m.ctx
	return func() tea.Msg {
		a := engine.NewAttempt(lessonID)
		if err := a.StartStreaming(ctx); err != nil {
			return attemptStartedMsg{err: err}
		}
		return attemptStartedMsg{attempt: a}
	}
}

func (m Model) advance(step func() (lesson.Outcome, error)) (tea.Model, tea.Cmd) {
	out, err := step()
	if err != nil {
		m.notice = errorText(err)
		return m, nil
	}
	m.notice = ""
	if out.Next != nil {
		m.logger.Debug("Next phrase", "lesson_id", out.Next.ID)
	}
	m.updateViewportContent()
	return m, nil
}

// playReference fetches and plays the reference recording
func (m Model) playReference(view lesson.View, rate device.Rate) (tea.Model, tea.Cmd) {
	if m.playing || view.SessionDone {
		return m, nil
	}
	if m.audio == nil || m.player == nil {
		m.notice = "Reference audio is not available"
		return m, nil
	}
	m.playing = true
	m.notice = ""

	audio, player, ctx := m.audio, m.player, m.ctx
	id := view.Utterance.ID
	return m, func() tea.Msg {
		data, err := audio.Get(ctx, id)
		if err != nil {
			return audioPlayedMsg{err: err}
		}
		return audioPlayedMsg{err: player.PlayWAV(ctx, data, rate)}
	}
}

// waitForFeedback returns a command that waits for the next bus event
func (m Model) waitForFeedback() tea.Cmd {
	events := m.events
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case ev := <-events:
			return feedbackMsg{event: ev}
		case <-ctx.Done():
			return feedbackClosedMsg{}
		}
	}
}

// prefetch warms the reference audio cache for the whole session
func (m Model) prefetch() tea.Cmd {
	p, ok := m.audio.(Prefetcher)
	if !ok {
		return nil
	}
	utterances := m.ctrl.Utterances()
	ids := make([]string, 0, len(utterances))
	for _, u := range utterances {
		ids = append(ids, u.ID)
	}
	ctx := m.ctx
	return func() tea.Msg {
		failed, err := p.Prefetch(ctx, ids)
		return prefetchedMsg{failed: failed, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Shutdown cancels the attempt and releases the bus subscriptions
func (m Model) Shutdown() {
	m.shutdown()
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Loading hatsuon..."
	}

	view := m.ctrl.Snapshot()

	var b strings.Builder
	b.WriteString(m.renderHeader(view))
	b.WriteString("\n")

	if view.SessionDone {
		b.WriteString(m.renderSummary(view))
	} else {
		b.WriteString(m.renderCard(view))
		b.WriteString("\n")
		b.WriteString(FeedbackPanelStyle.Width(m.width - 4).Render(m.viewport.View()))
	}
	b.WriteString("\n")

	b.WriteString(m.renderStatusBar(view))
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar(view))

	return b.String()
}

// renderHeader renders the logo and session progress
func (m Model) renderHeader(view lesson.View) string {
	logo := LogoStyle.Render(Logo)
	progress := ProgressStyle.Render(fmt.Sprintf("Phrase %d/%d", view.Index+1, view.Total))
	if view.SessionDone {
		progress = ProgressStyle.Render("Session finished")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, logo, strings.Repeat(" ", 3), progress)
	return TitlePanelStyle.Width(m.width - 4).Render(header)
}

// renderCard renders the current phrase
func (m Model) renderCard(view lesson.View) string {
	u := view.Utterance
	lines := []string{PhraseStyle.Render(u.Text)}
	if u.Romaji != "" {
		lines = append(lines, RomajiStyle.Render(u.Romaji))
	}
	if u.Translation != "" {
		lines = append(lines, TranslationStyle.Render(u.Translation))
	}

	style := CardStyle
	if view.Complete {
		style = CompleteCardStyle
	}
	return style.Width(m.width - 4).Render(strings.Join(lines, "\n"))
}

// renderSummary renders the finished session
func (m Model) renderSummary(view lesson.View) string {
	p := m.ctrl.Progress()
	lines := []string{
		PhraseStyle.Render("Session complete!"),
		"",
		FeedbackLabelStyle.Render("Overall score  ") + RenderScore(view.Aggregate, m.ctrl.Threshold()),
		FeedbackLabelStyle.Render("Scored phrases ") + fmt.Sprintf("%d", len(p.Scores)),
		FeedbackLabelStyle.Render("Skipped        ") + fmt.Sprintf("%d", p.Skipped),
	}
	return CompleteCardStyle.Width(m.width - 4).Render(strings.Join(lines, "\n"))
}

// renderStatusBar renders the status line of the current utterance
func (m Model) renderStatusBar(view lesson.View) string {
	var left string
	switch view.Phase {
	case lesson.PhaseRecording:
		elapsed := ""
		if !m.startedAt.IsZero() && m.attempt != nil {
			elapsed = fmt.Sprintf(" %.1fs", time.Since(m.startedAt).Seconds())
		}
		left = StatusRecordingStyle.Render(IconRecording+view.Status) + StatusIdleStyle.Render(elapsed)
	case lesson.PhaseProcessing:
		left = m.spinner.View() + " " + StatusProcessingStyle.Render(view.Status)
	case lesson.PhaseScored:
		icon := IconRetry
		if view.Complete {
			icon = IconPassed
		}
		left = StatusIdleStyle.Render(icon + view.Status)
	case lesson.PhaseFailed:
		left = ErrorStyle.Render(IconError + view.Status)
	default:
		left = StatusIdleStyle.Render(view.Status)
	}

	if m.playing {
		left += "  " + StatusProcessingStyle.Render(IconSpeaker+"playing")
	}
	if m.notice != "" {
		left += "  " + ErrorStyle.Render(m.notice)
	}

	right := StatusIdleStyle.Render("v" + version.App)
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if padding < 1 {
		padding = 1
	}
	return StatusBarStyle.Width(m.width - 2).Render(left + strings.Repeat(" ", padding) + right)
}

// renderHelpBar renders the help shortcuts bar
func (m Model) renderHelpBar(view lesson.View) string {
	var items []string

	switch {
	case view.SessionDone:
		items = []string{
			RenderKeyHint("n", "new session"),
			RenderKeyHint("q", "quit"),
		}
	case view.Phase == lesson.PhaseRecording:
		items = []string{
			RenderKeyHint("space", "stop"),
			RenderKeyHint("s", "skip"),
			RenderKeyHint("q", "quit"),
		}
	default:
		items = []string{
			RenderKeyHint("space", "record"),
			RenderKeyHint("p/P", "listen/slow"),
			RenderKeyHint("r", "retry"),
			RenderKeyHint("c", "continue"),
			RenderKeyHint("s", "skip"),
			RenderKeyHint("q", "quit"),
		}
	}

	return HelpStyle.Render(strings.Join(items, "  "))
}

// updateViewportContent renders the feedback of the current attempt
func (m *Model) updateViewportContent() {
	if !m.ready {
		return
	}
	view := m.ctrl.Snapshot()

	var b strings.Builder
	switch {
	case view.Scored:
		b.WriteString(FeedbackLabelStyle.Render("Score     "))
		b.WriteString(RenderScore(view.Score, m.ctrl.Threshold()))
		if view.Label != "" {
			b.WriteString("  " + view.Label)
		}
		b.WriteString("\n")
		if view.Transcription != "" {
			b.WriteString(FeedbackLabelStyle.Render("You said  ") + view.Transcription + "\n")
		}
		if view.ExpectedText != "" {
			b.WriteString(FeedbackLabelStyle.Render("Expected  ") + view.ExpectedText + "\n")
		}
		for _, line := range analysisLines(view.Analysis) {
			b.WriteString(FeedbackLabelStyle.Render(line) + "\n")
		}
	case view.Err != nil:
		b.WriteString(ErrorStyle.Render(IconError+view.Status) + "\n")
		b.WriteString(FeedbackLabelStyle.Render(string(hterror.GetCode(view.Err))))
	case view.Phase == lesson.PhaseRecording || view.Phase == lesson.PhaseProcessing:
		b.WriteString(FeedbackLabelStyle.Render(fmt.Sprintf("%sChunks received by the server: %d", IconWaiting, view.AckedChunks)))
	default:
		b.WriteString(FeedbackLabelStyle.Render("No attempt yet"))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoTop()
}

// analysisLines flattens the backend's extra fields in key order
func analysisLines(analysis map[string]json.RawMessage) []string {
	if len(analysis) == 0 {
		return nil
	}
	keys := make([]string, 0, len(analysis))
	for k := range analysis {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-10s%s", k, strings.TrimSpace(string(analysis[k]))))
	}
	return lines
}

func errorText(err error) string {
	var e *hterror.Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}

// Run starts the trainer TUI and blocks until the user quits
func Run(cfg Config) error {
	m, err := New(cfg)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
