// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     device
// Description: Microphone capture using PortAudio
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/msto63/hatsuon/internal/practice/capture"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

// Source acquires microphone streams from PortAudio
type Source struct {
	constraints capture.Constraints
	logger      *logging.Logger
}

// NewSource creates a PortAudio capture source
func NewSource(c capture.Constraints, logger *logging.Logger) *Source {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Source{constraints: c, logger: logger}
}

// Acquire opens and starts an input stream. Each stream holds its own
// PortAudio initialization and releases it on Close.
func (s *Source) Acquire(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, capture.DeviceUnavailable(err, "acquire canceled")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, capture.DeviceUnavailable(err, "failed to initialize PortAudio")
	}

	dev, err := s.inputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	frameLen := s.constraints.FrameSamples()
	buffer := make([]int16, frameLen)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: s.constraints.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.constraints.SampleRate),
		FramesPerBuffer: frameLen / s.constraints.Channels,
	}

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, mapOpenError(err, "failed to open audio stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, mapOpenError(err, "failed to start audio stream")
	}

	if s.constraints.EchoCancellation {
		s.logger.Info("Echo cancellation requested but not provided by PortAudio", "device", dev.Name)
	}
	s.logger.Debug("Audio stream started",
		"device", dev.Name,
		"sample_rate", s.constraints.SampleRate,
		"frame_samples", frameLen)

	out := capture.NewFrameStream(s.constraints.SampleRate, s.constraints.Channels, capture.DefaultBufferFrames, func() error {
		// Unblocks the pending Read in captureLoop
		return stream.Stop()
	})
	go s.captureLoop(stream, buffer, out)
	return out, nil
}

func (s *Source) inputDevice() (*portaudio.DeviceInfo, error) {
	name := s.constraints.Device
	if name == "" || name == "default" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil || dev == nil {
			return nil, capture.DeviceUnavailable(err, "no default input device")
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, capture.DeviceUnavailable(err, "failed to get devices")
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, capture.DeviceUnavailable(nil, fmt.Sprintf("device not found: %s", name))
}

// captureLoop continuously reads audio from the stream
func (s *Source) captureLoop(stream *portaudio.Stream, buffer []int16, out *capture.FrameStream) {
	defer func() {
		stream.Close()
		portaudio.Terminate()
		if dropped := out.Dropped(); dropped > 0 {
			s.logger.Warn("Audio frames dropped", "count", dropped)
		}
		out.Finish()
	}()

	for {
		select {
		case <-out.Stopped():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			select {
			case <-out.Stopped():
				return
			default:
			}
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			s.logger.Warn("Audio read failed", "error", err)
			return
		}

		frame := make([]int16, len(buffer))
		copy(frame, buffer)
		out.Push(frame)
	}
}

// mapOpenError classifies PortAudio open/start failures. A host-level refusal
// is how the OS reports a denied microphone permission.
func mapOpenError(err error, message string) error {
	var hostErr *portaudio.UnanticipatedHostError
	if errors.As(err, &hostErr) {
		return capture.PermissionDenied(err, message)
	}
	return capture.DeviceUnavailable(err, message)
}
