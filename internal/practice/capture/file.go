// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     capture
// Description: Capture source replaying a WAV recording
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package capture

import (
	"context"
	"os"
	"time"

	"github.com/msto63/hatsuon/internal/practice/wav"
)

// FileSource replays a 16-bit PCM WAV file as if it were a microphone. It
// delivers frames at real-time pace unless Pace is zero, and ends the stream
// at the end of the file.
type FileSource struct {
	Path        string
	Constraints Constraints

	// Pace is the wall-clock time per frame; zero delivers as fast as the consumer reads
	Pace time.Duration
}

// NewFileSource creates a real-time file source
func NewFileSource(path string, c Constraints) *FileSource {
	return &FileSource{Path: path, Constraints: c, Pace: c.FrameDuration}
}

// Acquire implements Source
func (f *FileSource) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, DeviceUnavailable(err, "acquire canceled")
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, DeviceUnavailable(err, "failed to read recording")
	}
	format, pcm, err := wav.Parse(data)
	if err != nil {
		return nil, DeviceUnavailable(err, "failed to parse recording")
	}
	if format.SampleRate != f.Constraints.SampleRate || format.Channels != f.Constraints.Channels {
		return nil, DeviceUnavailable(nil, "recording does not match capture constraints").
			WithDetail("sample_rate", format.SampleRate).
			WithDetail("channels", format.Channels)
	}

	samples := wav.Samples(pcm)
	frameLen := f.Constraints.FrameSamples()
	if frameLen <= 0 {
		frameLen = len(samples)
	}

	out := NewFrameStream(format.SampleRate, format.Channels, DefaultBufferFrames, nil)
	go f.play(samples, frameLen, out)
	return out, nil
}

func (f *FileSource) play(samples []int16, frameLen int, out *FrameStream) {
	defer out.Finish()

	var tick <-chan time.Time
	if f.Pace > 0 {
		ticker := time.NewTicker(f.Pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	for pos := 0; pos < len(samples); pos += frameLen {
		end := pos + frameLen
		if end > len(samples) {
			end = len(samples)
		}
		frame := make([]int16, end-pos)
		copy(frame, samples[pos:end])

		if tick != nil {
			select {
			case <-tick:
			case <-out.Stopped():
				return
			}
		}
		if !out.Send(frame) {
			return
		}
	}
}
