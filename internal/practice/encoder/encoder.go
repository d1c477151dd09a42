// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     encoder
// Description: Cadenced chunk encoder over a capture stream
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package encoder

import (
	"sync"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/capture"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

// DefaultCadence is the interval between emitted chunks
const DefaultCadence = 100 * time.Millisecond

// chunkBuffer is the capacity of the chunk channel. When the consumer falls
// behind, pending bytes are merged into the next chunk instead of queueing.
const chunkBuffer = 4

// Chunk is one encoded segment of an attempt
type Chunk struct {
	Seq  int
	Data []byte
}

// Encoder turns one capture stream into a finite sequence of chunks. An
// Encoder is single-use; each attempt creates a new one.
type Encoder struct {
	mime    string
	factory Factory
	cadence time.Duration
	logger  *logging.Logger

	mu      sync.Mutex
	started bool
	chunks  chan Chunk
	stop    chan struct{}
	abort   chan struct{}
	done    chan struct{}

	stopOnce  sync.Once
	abortOnce sync.Once

	// Counters, owned by run
	sent  int
	bytes int
}

// NewEncoder creates an encoder for a MIME type previously returned by Select
func (r *Registry) NewEncoder(mime string, cadence time.Duration, logger *logging.Logger) (*Encoder, error) {
	f, ok := r.factory(mime)
	if !ok {
		return nil, hterror.Newf("format %q is not supported", mime).
			WithCode(hterror.CodeNoSupportedFormat).
			WithOperation("encoder.new")
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Encoder{
		mime:    normalize(mime),
		factory: f,
		cadence: cadence,
		logger:  logger,
		stop:    make(chan struct{}),
		abort:   make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// MIMEType returns the encoded format
func (e *Encoder) MIMEType() string {
	return e.mime
}

// Start begins encoding the stream. The returned channel is closed after
// Stop once the final chunk has been delivered.
func (e *Encoder) Start(stream capture.Stream) (<-chan Chunk, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil, hterror.New("encoder already started").
			WithCode(hterror.CodeInvalidState).
			WithOperation("encoder.start")
	}

	codec, err := e.factory(stream.SampleRate(), stream.Channels())
	if err != nil {
		return nil, hterror.Wrap(err, "failed to create codec").
			WithCode(hterror.CodeNoSupportedFormat).
			WithDetail("mime", e.mime)
	}
	header, err := codec.Begin()
	if err != nil {
		return nil, hterror.Wrap(err, "failed to start codec").
			WithCode(hterror.CodeNoSupportedFormat).
			WithDetail("mime", e.mime)
	}

	e.started = true
	e.chunks = make(chan Chunk, chunkBuffer)
	go e.run(stream.Samples(), codec, header)
	return e.chunks, nil
}

// Stop finalizes encoding: frames already buffered by the stream are
// encoded, the trailer is flushed, and the chunk channel is closed after the
// last chunk. Stop does not block.
func (e *Encoder) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Abort ends encoding without delivering pending data
func (e *Encoder) Abort() {
	e.Stop()
	e.abortOnce.Do(func() { close(e.abort) })
}

// Done is closed when the chunk channel has been closed
func (e *Encoder) Done() <-chan struct{} {
	return e.done
}

func (e *Encoder) run(samples <-chan []int16, codec Codec, pending []byte) {
	defer close(e.done)
	defer close(e.chunks)

	ticker := time.NewTicker(e.cadence)
	defer ticker.Stop()

	seq := 0
	encode := func(frame []int16) {
		b, err := codec.Encode(frame)
		if err != nil {
			e.logger.Warn("Frame encoding failed", "error", err)
			return
		}
		pending = append(pending, b...)
	}
	emit := func() {
		if len(pending) == 0 {
			return
		}
		select {
		case e.chunks <- Chunk{Seq: seq, Data: pending}:
			seq++
			e.sent++
			e.bytes += len(pending)
			pending = nil
		default:
			// Consumer is behind; merge into the next chunk
		}
	}

	for {
		select {
		case frame, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			encode(frame)

		case <-ticker.C:
			emit()

		case <-e.stop:
		drain:
			for samples != nil {
				select {
				case frame, ok := <-samples:
					if !ok {
						break drain
					}
					encode(frame)
				default:
					break drain
				}
			}

			tail, err := codec.Flush()
			if err != nil {
				e.logger.Warn("Codec flush failed", "error", err)
			}
			pending = append(pending, tail...)

			if len(pending) > 0 {
				select {
				case e.chunks <- Chunk{Seq: seq, Data: pending}:
					e.sent++
					e.bytes += len(pending)
				case <-e.abort:
				}
			}
			e.logger.Debug("Encoder stopped", "chunks", e.sent, "bytes", e.bytes, "mime", e.mime)
			return

		case <-e.abort:
			return
		}
	}
}
