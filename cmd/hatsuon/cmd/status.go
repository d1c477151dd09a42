// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: CLI command checking backend, microphone and history
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/device"
	"github.com/msto63/hatsuon/internal/practice/encoder"
	"github.com/msto63/hatsuon/internal/practice/store"
	"github.com/msto63/hatsuon/pkg/core/health"
	"github.com/msto63/hatsuon/pkg/core/version"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Checks backend, microphone and history",
	Long: `Checks everything a practice session depends on: the lesson
catalog, the scoring stream endpoint, a microphone, an audio format and
the history database.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	a, err := newApp(cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	registry := health.NewRegistry(cfg.General.Name, version.App)
	registry.SetTimeout(cfg.Backend.RequestTimeout.Duration)

	registry.Register(health.ErrorCheck("catalog", "lessons available", func(ctx context.Context) error {
		list, err := a.lessons.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return hterror.New("catalog is empty").WithCode(hterror.CodeNotFound)
		}
		return nil
	}))
	if a.client != nil {
		registry.Register(health.Optional(health.ErrorCheck("backend", "healthy", a.client.Health)))
	}
	registry.Register(health.EndpointCheck("stream", cfg.Backend.StreamURL))
	registry.Register(health.ErrorCheck("microphone", "input device found", func(ctx context.Context) error {
		devices, err := device.ListInputDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return hterror.New("no input device").WithCode(hterror.CodeDeviceUnavailable)
		}
		return nil
	}))
	registry.Register(health.ErrorCheck("format", "encoder available", func(ctx context.Context) error {
		_, err := encoder.DefaultRegistry().Select(cfg.Streaming.Formats)
		return err
	}))
	if cfg.HistoryEnabled() {
		registry.Register(health.Optional(health.ErrorCheck("history", cfg.History.Path, func(ctx context.Context) error {
			s, err := store.Open(store.Config{Path: cfg.History.Path})
			if err != nil {
				return err
			}
			return s.Close()
		})))
	}

	fmt.Printf("hatsuon Status (v%s)\n", version.App)
	fmt.Println("===================")
	fmt.Println()

	report := registry.Check(cmd.Context())
	for _, c := range report.Checks {
		icon := "[+]"
		switch c.Status {
		case health.StatusUnhealthy:
			icon = "[-]"
		case health.StatusDegraded, health.StatusUnknown:
			icon = "[~]"
		}
		fmt.Printf("  %s %-12s %-10s %s (%s)\n", icon, c.Name, c.Status, c.Message, c.Duration.Round(time.Millisecond))
	}
	fmt.Println()

	if !report.Healthy() {
		fmt.Println("Some checks failed; practice will not work until they pass.")
		return hterror.New("status checks failed").WithCode(hterror.CodeInternal)
	}
	fmt.Println("Ready to practice.")
	return nil
}
