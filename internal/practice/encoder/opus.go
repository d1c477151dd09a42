//go:build opus

// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     encoder
// Description: Ogg/Opus codec (requires libopus, build with -tags opus)
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package encoder

import (
	"bytes"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

const (
	// opusFrameMs is the Opus packet duration
	opusFrameMs = 20

	// opusClockRate is the fixed RTP clock of Opus, independent of input rate
	opusClockRate = 48000

	// maxOpusPacket bounds one encoded packet
	maxOpusPacket = 4000
)

func init() {
	registerBuiltin(MIMEOggOpus, newOpusCodec)
}

type opusCodec struct {
	enc      *opus.Encoder
	rate     int
	channels int
	out      bytes.Buffer
	ogg      *oggwriter.OggWriter
	frameLen int
	pending  []int16
	packet   []byte
	seq      uint16
	ts       uint32
}

func newOpusCodec(sampleRate, channels int) (Codec, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	c := &opusCodec{
		enc:      enc,
		rate:     sampleRate,
		channels: channels,
		frameLen: sampleRate * opusFrameMs / 1000 * channels,
		packet:   make([]byte, maxOpusPacket),
	}
	return c, nil
}

func (c *opusCodec) Begin() ([]byte, error) {
	// OggWriter writes the OpusHead and OpusTags pages on creation
	w, err := oggwriter.NewWith(&c.out, uint32(c.rate), uint16(c.channels))
	if err != nil {
		return nil, fmt.Errorf("ogg writer: %w", err)
	}
	c.ogg = w
	return c.take(), nil
}

func (c *opusCodec) Encode(frame []int16) ([]byte, error) {
	c.pending = append(c.pending, frame...)
	for len(c.pending) >= c.frameLen {
		if err := c.writePacket(c.pending[:c.frameLen]); err != nil {
			return nil, err
		}
		c.pending = c.pending[c.frameLen:]
	}
	return c.take(), nil
}

func (c *opusCodec) Flush() ([]byte, error) {
	if len(c.pending) > 0 {
		padded := make([]int16, c.frameLen)
		copy(padded, c.pending)
		c.pending = nil
		if err := c.writePacket(padded); err != nil {
			return nil, err
		}
	}
	if err := c.ogg.Close(); err != nil {
		return nil, fmt.Errorf("close ogg: %w", err)
	}
	return c.take(), nil
}

func (c *opusCodec) writePacket(pcm []int16) error {
	n, err := c.enc.Encode(pcm, c.packet)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	payload := make([]byte, n)
	copy(payload, c.packet[:n])

	c.seq++
	c.ts += opusClockRate * opusFrameMs / 1000
	return c.ogg.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: c.seq,
			Timestamp:      c.ts,
		},
		Payload: payload,
	})
}

// take returns and clears the bytes written to the container so far
func (c *opusCodec) take() []byte {
	if c.out.Len() == 0 {
		return nil
	}
	b := make([]byte, c.out.Len())
	copy(b, c.out.Bytes())
	c.out.Reset()
	return b
}
