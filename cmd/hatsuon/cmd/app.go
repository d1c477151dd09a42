// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: Wiring of catalog, capture, transport, engine and history
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"context"

	"github.com/msto63/hatsuon/internal/practice/bus"
	"github.com/msto63/hatsuon/internal/practice/capture"
	"github.com/msto63/hatsuon/internal/practice/catalog"
	"github.com/msto63/hatsuon/internal/practice/device"
	"github.com/msto63/hatsuon/internal/practice/encoder"
	"github.com/msto63/hatsuon/internal/practice/store"
	"github.com/msto63/hatsuon/internal/practice/stream"
	"github.com/msto63/hatsuon/internal/practice/transport"
	"github.com/msto63/hatsuon/pkg/core/config"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

// lessonSource serves lessons and their reference audio
type lessonSource interface {
	catalog.Provider
	catalog.AudioFetcher
}

// app holds the long-lived parts shared by the commands
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	lessons lessonSource
	client  *catalog.Client
	engine  *stream.Engine

	history  *store.SQLiteStore
	recorder *store.Recorder
	detach   []func()
}

// appOptions selects optional parts
type appOptions struct {
	// RecordingFile replaces the microphone with a WAV file
	RecordingFile string
	// History opens the history store when enabled in the config
	History bool
}

func newApp(cfg *config.Config, logger *logging.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	lessons, client, err := openCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.lessons = lessons
	a.client = client

	b := bus.New()
	dialer := transport.NewWSDialer(transport.WSConfig{
		URL:              cfg.Backend.StreamURL,
		HandshakeTimeout: cfg.Backend.HandshakeTimeout.Duration,
		WriteTimeout:     cfg.Backend.WriteTimeout.Duration,
		CloseTimeout:     cfg.Backend.CloseTimeout.Duration,
	}, logger.Named("transport"))

	a.engine = stream.NewEngine(
		stream.OptionsFromConfig(cfg),
		captureSource(cfg, logger, opts.RecordingFile),
		dialer,
		encoder.DefaultRegistry(),
		b,
		logger.Named("stream"),
	)

	if opts.History && cfg.HistoryEnabled() {
		history, err := store.Open(store.Config{Path: cfg.History.Path})
		if err != nil {
			// Practice works without history
			logger.Warn("History disabled", "error", err, "path", cfg.History.Path)
		} else {
			a.history = history
			a.recorder = store.NewRecorder(history, logger.Named("history"))
			a.detach = append(a.detach, a.recorder.Attach(b))
		}
	}

	return a, nil
}

// openCatalog uses the catalog file when configured, the backend otherwise
func openCatalog(cfg *config.Config, logger *logging.Logger) (lessonSource, *catalog.Client, error) {
	if cfg.Lesson.CatalogFile != "" {
		f, err := catalog.LoadFile(cfg.Lesson.CatalogFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("Using catalog file", "path", cfg.Lesson.CatalogFile)
		return f, nil, nil
	}

	client := catalog.NewClient(catalog.ClientConfig{
		BaseURL:     cfg.Backend.BaseURL,
		CatalogPath: cfg.Backend.CatalogPath,
		AudioPath:   cfg.Backend.ReferenceAudioPath,
		Timeout:     cfg.Backend.RequestTimeout.Duration,
	}, logger.Named("catalog"))
	return client, client, nil
}

// captureSource builds the microphone source, or a file replay
func captureSource(cfg *config.Config, logger *logging.Logger, file string) capture.Source {
	c := capture.Constraints{
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
		FrameDuration:    cfg.FrameDuration(),
		EchoCancellation: cfg.EchoCancellationEnabled(),
		NoiseSuppression: cfg.NoiseSuppressionEnabled(),
		Device:           cfg.Audio.Device,
	}
	if file != "" {
		return capture.NewFileSource(file, c)
	}

	var src capture.Source = device.NewSource(c, logger.Named("capture"))
	if c.NoiseSuppression {
		src = capture.NewGatedSource(src, capture.WebRTCFactory(cfg.Audio.VADMode), 0, logger.Named("gate"))
	}
	return src
}

// checkBackend logs whether the scoring backend answers
func (a *app) checkBackend(ctx context.Context) {
	if a.client == nil {
		return
	}
	if err := a.client.Health(ctx); err != nil {
		a.logger.Warn("Backend health check failed", "error", err, "base_url", a.cfg.Backend.BaseURL)
		return
	}
	a.logger.Debug("Backend healthy", "base_url", a.cfg.Backend.BaseURL)
}

// Close releases the engine, the subscriptions and the history store
func (a *app) Close() {
	a.engine.Close()
	for _, d := range a.detach {
		d()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("Failed to close history", "error", err)
		}
	}
	a.logger.Sync()
}
