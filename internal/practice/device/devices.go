// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     device
// Description: PortAudio device enumeration
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package device

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Info holds information about an audio input device
type Info struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices returns a list of available input devices
func ListInputDevices() ([]Info, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	defaultInput, _ := portaudio.DefaultInputDevice()
	var defaultInputName string
	if defaultInput != nil {
		defaultInputName = defaultInput.Name
	}

	var inputs []Info
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		info := Info{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         dev.Name == defaultInputName,
		}
		if dev.HostApi != nil {
			info.HostAPI = dev.HostApi.Name
		}
		inputs = append(inputs, info)
	}

	return inputs, nil
}
