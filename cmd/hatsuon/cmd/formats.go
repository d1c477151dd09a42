// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: CLI command showing the streaming format negotiation
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"
	"strings"

	"github.com/msto63/hatsuon/internal/practice/encoder"
	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "Shows the audio formats offered to the backend",
	Long: `Shows the candidate formats of streaming.formats in priority order,
whether this build can encode them, and the format an attempt selects.

Ogg/Opus is only available in builds with -tags opus.`,
	RunE: runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry := encoder.DefaultRegistry()

	fmt.Println("Candidates")
	fmt.Println("----------")
	for i, mime := range cfg.Streaming.Formats {
		mark := "[-]"
		if registry.Supported(mime) {
			mark = "[+]"
		}
		fmt.Printf("  %d. %s %s\n", i+1, mark, mime)
	}
	fmt.Println()
	fmt.Printf("Encoders in this build: %s\n", strings.Join(registry.Types(), ", "))

	selected, err := registry.Select(cfg.Streaming.Formats)
	if err != nil {
		return err
	}
	fmt.Printf("Selected:               %s (chunk every %s)\n", selected, cfg.Streaming.Cadence.Duration)
	return nil
}
