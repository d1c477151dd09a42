// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     stream
// Description: One record, stream and feedback cycle for a single utterance
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package stream

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/capture"
	"github.com/msto63/hatsuon/internal/practice/encoder"
	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/internal/practice/transport"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

// Attempt owns the capture stream, the encoder and the transport channel of
// one try. All of them are created by StartStreaming and released before
// Done is closed; nothing is reused by a later attempt.
type Attempt struct {
	id       string
	lessonID string
	engine   *Engine
	logger   *logging.Logger
	sm       *StateMachine

	mu      sync.Mutex
	err     error
	cancel  context.CancelFunc
	running bool
	closed  bool
	stream  capture.Stream
	enc     *encoder.Encoder
	ch      transport.Channel
	stats   Stats

	closeOnce sync.Once
	closeReq  chan struct{}
	doneOnce  sync.Once
	done      chan struct{}
}

// Stats counts what an attempt sent
type Stats struct {
	Format        string
	ChunksSent    int
	ChunksDropped int
	BytesSent     int
	Acks          int
}

func newAttempt(e *Engine, lessonID string) *Attempt {
	id := uuid.New().String()
	return &Attempt{
		id:       id,
		lessonID: lessonID,
		engine:   e,
		logger:   e.logger.With("attempt_id", id, "lesson_id", lessonID),
		sm:       NewStateMachine(),
		closeReq: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ID returns the attempt id stamped on its events
func (a *Attempt) ID() string {
	return a.id
}

// LessonID returns the lesson this attempt is addressed to
func (a *Attempt) LessonID() string {
	return a.lessonID
}

// State returns the current lifecycle state
func (a *Attempt) State() State {
	return a.sm.Current()
}

// AddListener registers a state change listener
func (a *Attempt) AddListener(l StateChangeListener) {
	a.sm.AddListener(l)
}

// Settled is closed once the attempt reaches Closed or Errored
func (a *Attempt) Settled() <-chan struct{} {
	return a.sm.Settled()
}

// Done is closed once every resource of the attempt has been released
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Err returns the error that moved the attempt to Errored
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Stats returns the transmission counters
func (a *Attempt) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// StartStreaming acquires the microphone, selects a format and opens the
// channel, in that order. Failures are returned synchronously, published on
// the bus, and leave the attempt Errored with everything released.
func (a *Attempt) StartStreaming(ctx context.Context) error {
	if !a.sm.Transition(StateRequesting) {
		return hterror.Newf("cannot start streaming in state %s", a.sm.Current()).
			WithCode(hterror.CodeInvalidState).
			WithOperation("stream.start")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	e := a.engine
	a.logger.Debug("Requesting capture")

	stream, err := e.source.Acquire(ctx)
	if err != nil {
		return a.abortStart(err)
	}
	a.setStream(stream)

	mime, err := e.registry.Select(e.opts.Formats)
	if err != nil {
		return a.abortStart(err)
	}
	enc, err := e.registry.NewEncoder(mime, e.opts.Cadence, a.logger)
	if err != nil {
		return a.abortStart(err)
	}

	ch, err := e.dialer.Open(ctx, a.lessonID)
	if err != nil {
		return a.abortStart(err)
	}
	a.mu.Lock()
	a.ch = ch
	a.mu.Unlock()

	chunks, err := enc.Start(stream)
	if err != nil {
		return a.abortStart(err)
	}

	a.mu.Lock()
	a.enc = enc
	a.stats.Format = mime
	if a.closed {
		a.mu.Unlock()
		return a.abortStart(canceled())
	}
	a.running = true
	a.mu.Unlock()

	if !a.sm.Transition(StateStreaming) {
		// Closed concurrently; the loop performs the teardown
		a.logger.Debug("Attempt closed while requesting")
	} else {
		a.logger.Info("Streaming started", "format", mime)
	}
	go a.loop(stream, enc, ch, chunks)
	return nil
}

func (a *Attempt) setStream(s capture.Stream) {
	a.mu.Lock()
	a.stream = s
	a.mu.Unlock()
}

// abortStart releases what StartStreaming acquired and fails the attempt
func (a *Attempt) abortStart(err error) error {
	a.mu.Lock()
	stream, enc, ch := a.stream, a.enc, a.ch
	closed := a.closed
	a.mu.Unlock()

	if enc != nil {
		enc.Abort()
		<-enc.Done()
	}
	if ch != nil {
		_ = ch.Close()
		drainEvents(ch)
	}
	if stream != nil {
		_ = stream.Close()
	}

	if closed && !hterror.HasCode(err, hterror.CodeCanceled) {
		err = canceled()
	}
	a.fail(err, !closed)
	a.finish()
	return a.Err()
}

// StopStreaming ends recording. The encoder finalizes its pending audio and
// the stop message follows the last chunk.
func (a *Attempt) StopStreaming() error {
	if !a.sm.Transition(StateStopping) {
		return hterror.Newf("cannot stop streaming in state %s", a.sm.Current()).
			WithCode(hterror.CodeInvalidState).
			WithOperation("stream.stop")
	}

	a.mu.Lock()
	enc, stream := a.enc, a.stream
	a.mu.Unlock()

	enc.Stop()
	_ = stream.Close()
	a.logger.Debug("Streaming stopped")
	return nil
}

// Close tears the attempt down from any state. A non-terminal attempt ends
// Errored with CANCELED. Close does not wait; use Done.
func (a *Attempt) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		running := a.running
		cancel := a.cancel
		a.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if running {
			close(a.closeReq)
			return
		}
		if a.sm.Current() == StateIdle {
			a.fail(canceled(), false)
			a.finish()
		}
		// Requesting: StartStreaming observes closed and releases
	})
}

func (a *Attempt) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}

// fail moves the attempt to Errored; the first error wins
func (a *Attempt) fail(err error, publish bool) {
	if !a.sm.Transition(StateErrored) {
		return
	}
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()

	if hterror.HasCode(err, hterror.CodeCanceled) {
		a.logger.Debug("Attempt canceled")
	} else {
		a.logger.Warn("Attempt failed", "error", err, "code", hterror.GetCode(err))
	}
	if publish {
		a.publish(feedback.FromError(err))
	}
}

func (a *Attempt) publish(ev feedback.Event) {
	a.engine.bus.Publish(ev.Stamp(a.id, a.lessonID))
}

func canceled() *hterror.Error {
	return hterror.New("attempt canceled").
		WithCode(hterror.CodeCanceled).
		WithOperation("stream.close")
}

// loop serializes chunk delivery, channel events, timers and teardown
func (a *Attempt) loop(stream capture.Stream, enc *encoder.Encoder, ch transport.Channel, chunks <-chan encoder.Chunk) {
	defer a.finish()

	events := ch.Events()
	closeReq := a.closeReq

	var (
		timeout, grace <-chan time.Time
		timeoutTimer   *time.Timer
		graceTimer     *time.Timer

		resultSeen   bool
		backendErr   error
		transportErr error
		errPublished bool
		channelGone  bool
		released     bool
	)
	stopTimers := func() {
		if timeoutTimer != nil {
			timeoutTimer.Stop()
			timeout = nil
		}
		if graceTimer != nil {
			graceTimer.Stop()
			grace = nil
		}
	}
	scheduleClose := func() {
		if timeoutTimer != nil {
			timeoutTimer.Stop()
			timeout = nil
		}
		if graceTimer == nil {
			graceTimer = time.NewTimer(a.engine.opts.CloseGrace)
			grace = graceTimer.C
		}
	}
	release := func() {
		if released {
			return
		}
		released = true
		stopTimers()
		enc.Abort()
		_ = stream.Close()
		_ = ch.Close()
	}
	connectionLost := func() error {
		if transportErr != nil {
			return transportErr
		}
		return hterror.New("connection closed before feedback arrived").
			WithCode(hterror.CodeConnectionError).
			WithOperation("stream.await")
	}

	// settle decides the outcome once the attempt is AwaitingFeedback
	settle := func() {
		if a.sm.Current() != StateAwaitingFeedback {
			return
		}
		switch {
		case resultSeen && channelGone:
			stopTimers()
			_ = ch.Close()
			a.sm.Transition(StateClosed)
		case resultSeen:
			scheduleClose()
		case backendErr != nil:
			a.fail(backendErr, false)
			scheduleClose()
		case channelGone:
			a.fail(connectionLost(), !errPublished)
			release()
		}
	}

	for chunks != nil || events != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				if a.sm.Current() != StateStopping {
					continue
				}
				if !ch.SendControl() {
					a.logger.Debug("Stop message dropped", "channel", ch.State())
				}
				if a.sm.Transition(StateAwaitingFeedback) {
					if d := a.engine.opts.FeedbackTimeout; d > 0 {
						timeoutTimer = time.NewTimer(d)
						timeout = timeoutTimer.C
					}
					a.logger.Debug("Awaiting feedback")
					settle()
				}
				continue
			}
			sent := ch.Send(c.Data)
			a.mu.Lock()
			if sent {
				a.stats.ChunksSent++
				a.stats.BytesSent += len(c.Data)
			} else {
				a.stats.ChunksDropped++
			}
			a.mu.Unlock()

		case ev, ok := <-events:
			if !ok {
				events = nil
				channelGone = true
				settle()
				continue
			}
			switch ev.Type {
			case transport.EventOpened:
				a.logger.Debug("Channel opened")

			case transport.EventMessage:
				if a.sm.Current().Terminal() {
					a.logger.Debug("Late message dropped", "feedback", ev.Feedback)
					continue
				}
				switch ev.Feedback.Kind {
				case feedback.KindResult:
					if resultSeen {
						a.logger.Debug("Duplicate result dropped")
						continue
					}
					resultSeen = true
					a.publish(ev.Feedback)
				case feedback.KindChunkAck:
					a.mu.Lock()
					a.stats.Acks++
					a.mu.Unlock()
					a.publish(ev.Feedback)
				case feedback.KindError:
					a.publish(ev.Feedback)
					if ev.Feedback.Failure != nil && ev.Feedback.Failure.Code == hterror.CodeBackendError &&
						!resultSeen && backendErr == nil {
						backendErr = ev.Feedback.Err()
					}
				}
				settle()

			case transport.EventError:
				if transportErr == nil {
					transportErr = ev.Err
				}
				if !a.sm.Current().Terminal() && !errPublished && !resultSeen {
					errPublished = true
					a.publish(feedback.FromError(ev.Err))
				}

			case transport.EventClosed:
				a.logger.Debug("Channel closed", "code", ev.Code, "reason", ev.Reason)
				channelGone = true
				settle()
			}

		case <-timeout:
			timeout = nil
			a.fail(hterror.Newf("no feedback within %s", a.engine.opts.FeedbackTimeout).
				WithCode(hterror.CodeTimeout).
				WithOperation("stream.await"), true)
			release()

		case <-grace:
			grace = nil
			_ = ch.Close()
			a.sm.Transition(StateClosed)

		case <-closeReq:
			closeReq = nil
			a.fail(canceled(), false)
			release()
		}

	}

	stopTimers()
	_ = stream.Close()
	st := a.Stats()
	a.logger.Info("Attempt finished",
		"state", a.sm.Current(),
		"chunks_sent", st.ChunksSent,
		"chunks_dropped", st.ChunksDropped,
		"bytes", st.BytesSent,
		"acks", st.Acks)
}

// drainEvents consumes a channel's events until it is closed
func drainEvents(ch transport.Channel) {
	for range ch.Events() {
	}
}
