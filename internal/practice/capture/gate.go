// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     capture
// Description: Noise gate driven by WebRTC voice activity detection
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package capture

import (
	"context"
	"fmt"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/msto63/hatsuon/pkg/core/logging"
)

// DefaultHangover keeps the gate open after the last voiced frame so word
// endings are not clipped
const DefaultHangover = 300 * time.Millisecond

// Classifier decides whether a frame contains speech
type Classifier interface {
	IsSpeech(frame []int16) (bool, error)
}

// ClassifierFactory creates one classifier per stream; classifiers are not
// shared between goroutines
type ClassifierFactory func(sampleRate int) (Classifier, error)

// WebRTCClassifier implements Classifier using WebRTC's VAD
type WebRTCClassifier struct {
	vad        *webrtcvad.VAD
	sampleRate int
}

// NewWebRTCClassifier creates a classifier with aggressiveness mode 0-3
func NewWebRTCClassifier(sampleRate, mode int) (*WebRTCClassifier, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("invalid sample rate %d for VAD", sampleRate)
	}
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("mode must be between 0 and 3")
	}

	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}
	return &WebRTCClassifier{vad: vad, sampleRate: sampleRate}, nil
}

// WebRTCFactory returns a ClassifierFactory for the given mode
func WebRTCFactory(mode int) ClassifierFactory {
	return func(sampleRate int) (Classifier, error) {
		return NewWebRTCClassifier(sampleRate, mode)
	}
}

// IsSpeech processes the frame in 10ms windows and reports whether any is voiced
func (w *WebRTCClassifier) IsSpeech(frame []int16) (bool, error) {
	window := w.sampleRate / 100
	if len(frame) < window {
		padded := make([]int16, window)
		copy(padded, frame)
		frame = padded
	}

	buf := make([]byte, window*2)
	for i := 0; i+window <= len(frame); i += window {
		for j, s := range frame[i : i+window] {
			buf[j*2] = byte(s)
			buf[j*2+1] = byte(s >> 8)
		}
		active, err := w.vad.Process(w.sampleRate, buf)
		if err != nil {
			return false, fmt.Errorf("VAD processing failed: %w", err)
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// GatedSource mutes non-speech frames of the streams of an inner source
type GatedSource struct {
	inner    Source
	factory  ClassifierFactory
	hangover time.Duration
	logger   *logging.Logger
}

// NewGatedSource wraps inner. A hangover of zero uses DefaultHangover.
func NewGatedSource(inner Source, factory ClassifierFactory, hangover time.Duration, logger *logging.Logger) *GatedSource {
	if hangover <= 0 {
		hangover = DefaultHangover
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &GatedSource{inner: inner, factory: factory, hangover: hangover, logger: logger}
}

// Acquire implements Source. If no classifier can be built for the stream the
// raw stream is returned.
func (g *GatedSource) Acquire(ctx context.Context) (Stream, error) {
	stream, err := g.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	classifier, err := g.factory(stream.SampleRate())
	if err != nil {
		g.logger.Warn("Noise gate disabled", "error", err)
		return stream, nil
	}

	out := NewFrameStream(stream.SampleRate(), stream.Channels(), cap(stream.Samples()), stream.Close)
	go g.run(stream, classifier, out)
	return out, nil
}

func (g *GatedSource) run(in Stream, classifier Classifier, out *FrameStream) {
	defer out.Finish()

	// Frames left before the gate closes again
	open := 0
	for frame := range in.Samples() {
		voiced, err := classifier.IsSpeech(frame)
		if err != nil {
			// Pass audio through unmodified rather than muting on classifier failure
			voiced = true
		}

		if voiced {
			open = g.hangoverFrames(in, len(frame))
		} else if open > 0 {
			open--
		} else {
			frame = make([]int16, len(frame))
		}

		if !out.Send(frame) {
			// Downstream closed; inner stream was closed by out.Close
			for range in.Samples() {
			}
			return
		}
	}
}

func (g *GatedSource) hangoverFrames(in Stream, frameLen int) int {
	perFrame := in.SampleRate() * in.Channels()
	if frameLen == 0 || perFrame == 0 {
		return 0
	}
	frameDur := time.Duration(frameLen) * time.Second / time.Duration(perFrame)
	if frameDur <= 0 {
		return 0
	}
	return int(g.hangover / frameDur)
}
