// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     stream
// Description: Streaming session engine owning one attempt at a time
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

// Package stream orchestrates one utterance attempt: it acquires the
// microphone, opens the transport, streams encoded chunks while recording,
// signals end of utterance and waits for the backend's feedback. Every
// feedback event is stamped with the attempt and lesson ids and published on
// the feedback bus.
package stream

import (
	"sync"
	"time"

	"github.com/msto63/hatsuon/internal/practice/bus"
	"github.com/msto63/hatsuon/internal/practice/capture"
	"github.com/msto63/hatsuon/internal/practice/encoder"
	"github.com/msto63/hatsuon/internal/practice/transport"
	"github.com/msto63/hatsuon/pkg/core/config"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

// Options holds the timing and format settings of attempts
type Options struct {
	// Cadence is the chunk emission interval
	Cadence time.Duration
	// CloseGrace is the delay between the result and closing the channel
	CloseGrace time.Duration
	// FeedbackTimeout bounds AwaitingFeedback; zero waits forever
	FeedbackTimeout time.Duration
	// Formats are the MIME candidates in priority order
	Formats []string
}

// DefaultOptions returns the standard attempt settings
func DefaultOptions() Options {
	return Options{
		Cadence:         encoder.DefaultCadence,
		CloseGrace:      time.Second,
		FeedbackTimeout: 30 * time.Second,
		Formats:         append([]string(nil), config.DefaultFormats...),
	}
}

// OptionsFromConfig derives attempt settings from the streaming section
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Cadence:         cfg.Streaming.Cadence.Duration,
		CloseGrace:      cfg.Streaming.CloseGrace.Duration,
		FeedbackTimeout: cfg.Streaming.FeedbackTimeout.Duration,
		Formats:         append([]string(nil), cfg.Streaming.Formats...),
	}
	if len(opts.Formats) == 0 {
		opts.Formats = append([]string(nil), config.DefaultFormats...)
	}
	return opts
}

// Engine creates attempts and guarantees that at most one is alive
type Engine struct {
	opts     Options
	source   capture.Source
	dialer   transport.Dialer
	registry *encoder.Registry
	bus      *bus.Bus
	logger   *logging.Logger

	mu      sync.Mutex
	current *Attempt
}

// NewEngine creates an engine. A nil registry uses the built-in formats, a
// nil bus creates a private one.
func NewEngine(opts Options, source capture.Source, dialer transport.Dialer, registry *encoder.Registry, b *bus.Bus, logger *logging.Logger) *Engine {
	def := DefaultOptions()
	if opts.Cadence <= 0 {
		opts.Cadence = def.Cadence
	}
	if opts.CloseGrace < 0 {
		opts.CloseGrace = 0
	}
	if opts.FeedbackTimeout < 0 {
		opts.FeedbackTimeout = 0
	}
	if len(opts.Formats) == 0 {
		opts.Formats = def.Formats
	}
	if registry == nil {
		registry = encoder.DefaultRegistry()
	}
	if b == nil {
		b = bus.New()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		opts:     opts,
		source:   source,
		dialer:   dialer,
		registry: registry,
		bus:      b,
		logger:   logger,
	}
}

// Bus returns the feedback bus attempts publish on
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Options returns the attempt settings
func (e *Engine) Options() Options {
	return e.opts
}

// NewAttempt tears down the previous attempt, then creates a fresh one for
// lessonID in StateIdle
func (e *Engine) NewAttempt(lessonID string) *Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev := e.current; prev != nil {
		prev.Close()
		<-prev.Done()
	}

	a := newAttempt(e, lessonID)
	e.current = a
	return a
}

// Current returns the latest attempt, or nil
func (e *Engine) Current() *Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Close tears down the current attempt and waits for its resources to be released
func (e *Engine) Close() {
	e.mu.Lock()
	a := e.current
	e.current = nil
	e.mu.Unlock()

	if a != nil {
		a.Close()
		<-a.Done()
	}
}
