// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: CLI command for the interactive practice TUI
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"

	"github.com/msto63/hatsuon/internal/practice/catalog"
	"github.com/msto63/hatsuon/internal/practice/device"
	"github.com/msto63/hatsuon/internal/practice/lesson"
	"github.com/msto63/hatsuon/internal/tui/trainer"
	"github.com/spf13/cobra"
)

var practiceFrom string

var practiceCmd = &cobra.Command{
	Use:     "practice",
	Aliases: []string{"p", "train"},
	Short:   "Starts an interactive practice session",
	Long: `Starts an interactive practice session over the lesson catalog.

Phrases are practiced in catalog order. A phrase is complete once a
score reaches the success threshold; the session score is the mean of
all scores recorded with continue.

Keys:
  space   Start / stop recording
  p / P   Play the reference recording (normal / slow)
  r       Retry the current phrase
  c       Continue to the next phrase, keeping the score
  s       Skip the current phrase
  n       New session after the last phrase
  q       Quit

Logs are written to general.log_file (default <data_dir>/hatsuon.log).`,
	RunE: runPractice,
}

func init() {
	rootCmd.AddCommand(practiceCmd)

	practiceCmd.Flags().StringVar(&practiceFrom, "from", "", "lesson id to start with")
}

func runPractice(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI
	logFile, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := newLogger(cfg, logFile)

	a, err := newApp(cfg, logger, appOptions{History: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	a.checkBackend(ctx)

	utterances, err := a.lessons.List(ctx)
	if err != nil {
		return err
	}

	opts := lesson.Options{Threshold: cfg.Lesson.SuccessThreshold}
	if a.recorder != nil {
		opts.OnComplete = a.recorder.OnComplete
	}
	ctrl, err := lesson.NewController(utterances, opts, logger.Named("lesson"))
	if err != nil {
		return err
	}
	if practiceFrom != "" {
		if err := ctrl.BeginID(practiceFrom); err != nil {
			return err
		}
	}

	logger.Info("Practice session started", "lessons", len(utterances), "threshold", ctrl.Threshold())

	err = trainer.Run(trainer.Config{
		Controller: ctrl,
		Engine:     a.engine,
		Audio:      catalog.NewAudioCache(a.lessons, catalog.DefaultPrefetchLimit, logger.Named("audio")),
		Player:     device.NewPlayer(),
		Logger:     logger.Named("tui"),
	})
	if err != nil {
		return err
	}

	if p := ctrl.Progress(); p.Finished {
		fmt.Printf("Session complete. Score %.0f%% (%d scored, %d skipped)\n", ctrl.Snapshot().Aggregate, len(p.Scores), p.Skipped)
	}
	return nil
}
