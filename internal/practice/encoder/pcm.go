// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     encoder
// Description: Uncompressed PCM and streaming WAV codecs
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package encoder

import (
	"github.com/msto63/hatsuon/internal/practice/wav"
)

func init() {
	registerBuiltin(MIMEWAV, newWAVCodec)
	registerBuiltin(MIMEPCM, newPCMCodec)
}

// pcmCodec emits raw little-endian s16 samples
type pcmCodec struct {
	header []byte
}

func newPCMCodec(sampleRate, channels int) (Codec, error) {
	return &pcmCodec{}, nil
}

// newWAVCodec emits a WAV header with unknown length followed by raw samples
func newWAVCodec(sampleRate, channels int) (Codec, error) {
	return &pcmCodec{header: wav.Header(wav.PCM16(sampleRate, channels), wav.StreamingSize)}, nil
}

func (c *pcmCodec) Begin() ([]byte, error) {
	return c.header, nil
}

func (c *pcmCodec) Encode(frame []int16) ([]byte, error) {
	return wav.PCMBytes(frame), nil
}

func (c *pcmCodec) Flush() ([]byte, error) {
	return nil, nil
}
