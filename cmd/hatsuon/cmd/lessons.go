// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: CLI command listing the lesson catalog
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/msto63/hatsuon/internal/practice/lesson"
	"github.com/msto63/hatsuon/internal/practice/store"
	"github.com/spf13/cobra"
)

var lessonsCmd = &cobra.Command{
	Use:     "lessons",
	Aliases: []string{"phrases", "ls"},
	Short:   "Lists the lesson catalog in session order",
	RunE:    runLessons,
}

func init() {
	rootCmd.AddCommand(lessonsCmd)
}

func runLessons(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	a, err := newApp(cfg, logger, appOptions{History: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	utterances, err := a.lessons.List(ctx)
	if err != nil {
		return err
	}

	best := make(map[string]store.LessonStat)
	if a.history != nil {
		stats, err := a.history.LessonStats(ctx)
		if err != nil {
			logger.Warn("Lesson statistics unavailable", "error", err)
		}
		for _, s := range stats {
			best[s.LessonID] = s
		}
	}

	fmt.Println("Lessons")
	fmt.Println("=======")
	fmt.Println()
	for _, u := range lesson.Order(utterances) {
		mark := "[ ]"
		score := ""
		if s, ok := best[u.ID]; ok {
			score = fmt.Sprintf("best %.0f%% in %d", s.Best, s.Attempts)
			if s.Best >= cfg.Lesson.SuccessThreshold {
				mark = "[+]"
			}
		}
		fmt.Printf("  %s %-6s %-20s %-24s %s\n", mark, u.ID, u.Text, u.Romaji, score)
		if u.Translation != "" {
			fmt.Printf("             %s\n", u.Translation)
		}
	}
	fmt.Println()
	fmt.Printf("%d phrases, success threshold %.0f%%\n", len(utterances), cfg.Lesson.SuccessThreshold)
	return nil
}
