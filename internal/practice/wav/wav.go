// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     wav
// Description: RIFF/WAVE header encoding and parsing for 16-bit PCM
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package wav

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the length of a canonical PCM WAV header
const HeaderSize = 44

// StreamingSize marks RIFF and data lengths as unknown
const StreamingSize = 0xFFFFFFFF

// Format describes a PCM layout
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// PCM16 returns a 16-bit format for the given rate and channel count
func PCM16(sampleRate, channels int) Format {
	return Format{SampleRate: sampleRate, Channels: channels, BitsPerSample: 16}
}

// ByteRate returns bytes per second
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// Header builds a WAV header. dataSize StreamingSize produces a header for a
// stream of unknown length.
func Header(f Format, dataSize uint32) []byte {
	h := make([]byte, HeaderSize)
	riffSize := uint32(StreamingSize)
	if dataSize != StreamingSize {
		riffSize = 36 + dataSize
	}
	blockAlign := f.Channels * f.BitsPerSample / 8

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], riffSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], uint16(f.BitsPerSample))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

// Encode returns a complete WAV file for the samples
func Encode(f Format, samples []int16) []byte {
	pcm := PCMBytes(samples)
	return append(Header(f, uint32(len(pcm))), pcm...)
}

// PCMBytes converts samples to little-endian bytes
func PCMBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Samples converts little-endian bytes to samples; a trailing odd byte is ignored
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Parse parses a WAV file and returns its format and audio data. Truncated
// data chunks, including streaming headers, are clipped to the bytes present.
func Parse(data []byte) (Format, []byte, error) {
	var f Format
	if len(data) < HeaderSize {
		return f, nil, fmt.Errorf("file too small to be a valid WAV")
	}

	// Check RIFF header
	if string(data[0:4]) != "RIFF" {
		return f, nil, fmt.Errorf("not a valid RIFF file")
	}

	// Check WAVE format
	if string(data[8:12]) != "WAVE" {
		return f, nil, fmt.Errorf("not a valid WAVE file")
	}

	pos := 12
	dataStart := 0
	dataSize := 0

	for pos <= len(data)-8 && dataStart == 0 {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && pos+24 <= len(data) {
				if tag := binary.LittleEndian.Uint16(data[pos+8 : pos+10]); tag != 1 {
					return f, nil, fmt.Errorf("unsupported WAV encoding %d", tag)
				}
				f.Channels = int(binary.LittleEndian.Uint16(data[pos+10 : pos+12]))
				f.SampleRate = int(binary.LittleEndian.Uint32(data[pos+12 : pos+16]))
				f.BitsPerSample = int(binary.LittleEndian.Uint16(data[pos+22 : pos+24]))
			}
		case "data":
			dataStart = pos + 8
			dataSize = chunkSize
			continue
		}

		pos += 8 + chunkSize
		if pos%2 != 0 {
			pos++ // Word alignment
		}
	}

	if f.SampleRate == 0 || dataStart == 0 {
		return f, nil, fmt.Errorf("missing required WAV chunks")
	}
	if f.BitsPerSample != 16 {
		return f, nil, fmt.Errorf("unsupported bit depth %d", f.BitsPerSample)
	}

	if dataSize < 0 || dataStart+dataSize > len(data) {
		dataSize = len(data) - dataStart
	}

	return f, data[dataStart : dataStart+dataSize], nil
}
