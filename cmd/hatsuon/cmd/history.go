// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: CLI command showing the practice history
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"
	"os"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/store"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Shows recent sessions and per-phrase statistics",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of sessions to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.HistoryEnabled() {
		return hterror.New("history is disabled (history.enabled = false)").WithCode(hterror.CodeConfigError)
	}
	logger := newLogger(cfg, os.Stderr)

	history, err := store.Open(store.Config{Path: cfg.History.Path})
	if err != nil {
		return err
	}
	defer history.Close()

	ctx := cmd.Context()
	sessions, err := history.RecentSessions(ctx, historyLimit)
	if err != nil {
		return err
	}
	stats, err := history.LessonStats(ctx)
	if err != nil {
		return err
	}
	logger.Debug("History loaded", "sessions", len(sessions), "lessons", len(stats))

	fmt.Println("Sessions")
	fmt.Println("--------")
	if len(sessions) == 0 {
		fmt.Println("  no finished sessions yet")
	}
	for _, s := range sessions {
		fmt.Printf("  %s  %5.1f%%  %d phrases, %d scored, %d skipped  (%s)\n",
			s.FinishedAt.Local().Format("2006-01-02 15:04"),
			s.Aggregate, s.Lessons, len(s.Scores), s.Skipped,
			s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	}

	fmt.Println()
	fmt.Println("Phrases")
	fmt.Println("-------")
	if len(stats) == 0 {
		fmt.Println("  no results yet")
	}
	for _, s := range stats {
		icon := "[-]"
		if s.Best >= cfg.Lesson.SuccessThreshold {
			icon = "[+]"
		}
		fmt.Printf("  %s %-6s attempts %3d  best %5.1f%%  avg %5.1f%%  last %s\n",
			icon, s.LessonID, s.Attempts, s.Best, s.Average, s.Last.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
