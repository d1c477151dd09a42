// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     capture
// Description: Channel plumbing shared by stream producers
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package capture

import "sync"

// FrameStream implements Stream for a single producer goroutine. The producer
// pushes frames, watches Stopped and calls Finish when it exits; Close only
// signals. Push and Finish must not be called concurrently.
type FrameStream struct {
	samples    chan []int16
	sampleRate int
	channels   int

	stopOnce   sync.Once
	finishOnce sync.Once
	stop       chan struct{}
	finished   chan struct{}
	onClose    func() error

	mu      sync.Mutex
	dropped int
}

// NewFrameStream creates a stream buffering up to bufferFrames frames.
// onClose, if set, runs once when Close is first called.
func NewFrameStream(sampleRate, channels, bufferFrames int, onClose func() error) *FrameStream {
	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}
	return &FrameStream{
		samples:    make(chan []int16, bufferFrames),
		sampleRate: sampleRate,
		channels:   channels,
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
		onClose:    onClose,
	}
}

// Push delivers a frame without blocking; a full buffer drops the frame
func (s *FrameStream) Push(frame []int16) bool {
	select {
	case <-s.stop:
		return false
	default:
	}

	select {
	case s.samples <- frame:
		return true
	default:
		// Channel full, skip this frame
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return false
	}
}

// Send delivers a frame, blocking until there is room or the stream is closed
func (s *FrameStream) Send(frame []int16) bool {
	select {
	case <-s.stop:
		return false
	default:
	}

	select {
	case s.samples <- frame:
		return true
	case <-s.stop:
		return false
	}
}

// Stopped is closed once Close has been called
func (s *FrameStream) Stopped() <-chan struct{} {
	return s.stop
}

// Finish closes the samples channel; called by the producer on exit
func (s *FrameStream) Finish() {
	s.finishOnce.Do(func() {
		close(s.samples)
		close(s.finished)
	})
}

// Finished is closed after Finish
func (s *FrameStream) Finished() <-chan struct{} {
	return s.finished
}

// Dropped returns the number of frames discarded by Push
func (s *FrameStream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Samples implements Stream
func (s *FrameStream) Samples() <-chan []int16 { return s.samples }

// SampleRate implements Stream
func (s *FrameStream) SampleRate() int { return s.sampleRate }

// Channels implements Stream
func (s *FrameStream) Channels() int { return s.channels }

// Close implements Stream
func (s *FrameStream) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.onClose != nil {
			err = s.onClose()
		}
	})
	return err
}
