// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: CLI command listing audio input devices
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"

	"github.com/msto63/hatsuon/internal/practice/device"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Lists the available microphones",
	Long: `Lists the audio input devices known to PortAudio.

Use the device name as audio.device in the config to select it.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := device.ListInputDevices()
	if err != nil {
		return err
	}

	fmt.Println("Input devices")
	fmt.Println("-------------")
	if len(devices) == 0 {
		fmt.Println("  no input devices found")
		return nil
	}
	for _, d := range devices {
		mark := "   "
		if d.IsDefault {
			mark = "[*]"
		}
		fmt.Printf("  %s %-40s %-12s %d ch, %.0f Hz\n", mark, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}
