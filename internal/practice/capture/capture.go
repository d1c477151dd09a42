// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     capture
// Description: Microphone stream contract, constraints and failure codes
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

// Package capture defines how the practice engine obtains live audio.
//
// A Source hands out one Stream per attempt. A Stream delivers fixed-size
// frames of signed 16-bit samples on Samples() and closes that channel once
// Close has been called and the producer has exited. Sources never retry on
// their own; a failed Acquire must be re-invoked by the caller.
package capture

import (
	"context"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

const (
	// DefaultSampleRate is the scoring backend's expected rate
	DefaultSampleRate = 16000

	// DefaultChannels is mono audio
	DefaultChannels = 1

	// DefaultFrameDuration is the length of one delivered frame
	DefaultFrameDuration = 20 * time.Millisecond

	// DefaultBufferFrames is how many frames a stream buffers before dropping
	DefaultBufferFrames = 50
)

// Constraints are the fixed capture characteristics requested from a device
type Constraints struct {
	SampleRate       int
	Channels         int
	FrameDuration    time.Duration
	EchoCancellation bool
	NoiseSuppression bool

	// Device is the input device name; empty or "default" selects the system default
	Device string
}

// DefaultConstraints returns mono 16 kHz with echo and noise suppression on
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       DefaultSampleRate,
		Channels:         DefaultChannels,
		FrameDuration:    DefaultFrameDuration,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// FrameSamples returns the number of interleaved samples in one frame
func (c Constraints) FrameSamples() int {
	n := int(int64(c.SampleRate) * int64(c.FrameDuration) / int64(time.Second))
	return n * c.Channels
}

// Stream is a live audio stream owned by exactly one attempt
type Stream interface {
	// Samples delivers frames in capture order; closed after Close
	Samples() <-chan []int16
	SampleRate() int
	Channels() int
	// Close releases the device; safe to call more than once
	Close() error
}

// Source acquires microphone streams
type Source interface {
	Acquire(ctx context.Context) (Stream, error)
}

var (
	// ErrPermissionDenied matches acquisition failures caused by a refused permission
	ErrPermissionDenied = hterror.New("microphone permission denied").WithCode(hterror.CodePermissionDenied)

	// ErrDeviceUnavailable matches acquisition failures caused by a missing or busy device
	ErrDeviceUnavailable = hterror.New("microphone unavailable").WithCode(hterror.CodeDeviceUnavailable)
)

// PermissionDenied wraps cause as a PERMISSION_DENIED failure
func PermissionDenied(cause error, message string) *hterror.Error {
	return acquireError(cause, message, hterror.CodePermissionDenied)
}

// DeviceUnavailable wraps cause as a DEVICE_UNAVAILABLE failure
func DeviceUnavailable(cause error, message string) *hterror.Error {
	return acquireError(cause, message, hterror.CodeDeviceUnavailable)
}

func acquireError(cause error, message string, code hterror.Code) *hterror.Error {
	err := hterror.New(message)
	if cause != nil {
		err = hterror.Wrap(cause, message)
	}
	return err.WithCode(code).WithOperation("capture.acquire")
}
