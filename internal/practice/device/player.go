// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     device
// Description: Reference audio playback using PortAudio
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/msto63/hatsuon/internal/practice/wav"
)

// Rate is a playback speed factor
type Rate float64

const (
	// RateNormal plays at the recorded speed
	RateNormal Rate = 1.0

	// RateSlow plays at half speed
	RateSlow Rate = 0.5
)

// Player plays WAV audio to the default output device
type Player struct {
	mu      sync.Mutex
	playing bool
}

// NewPlayer creates a player
func NewPlayer() *Player {
	return &Player{}
}

// IsPlaying returns whether audio is currently playing
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// PlayWAV plays a WAV file at the given rate. Slowing down is done by opening
// the output at a proportionally lower sample rate, which also lowers pitch.
func (p *Player) PlayWAV(ctx context.Context, data []byte, rate Rate) error {
	format, pcm, err := wav.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse WAV: %w", err)
	}
	if rate <= 0 {
		rate = RateNormal
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return fmt.Errorf("already playing")
	}
	p.playing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	return play(ctx, wav.Samples(pcm), format.Channels, float64(format.SampleRate)*float64(rate))
}

func play(ctx context.Context, samples []int16, channels int, sampleRate float64) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	bufferSize := 1024
	buffer := make([]int16, bufferSize*channels)

	stream, err := portaudio.OpenDefaultStream(0, channels, sampleRate, bufferSize, &buffer)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for pos := 0; pos < len(samples); pos += len(buffer) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buffer, samples[pos:])
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write to stream: %w", err)
		}
	}
	return nil
}
