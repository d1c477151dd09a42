// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: Root command and shared flags of the hatsuon CLI
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/pkg/core/config"
	"github.com/msto63/hatsuon/pkg/core/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hatsuon",
	Short: "hatsuon - Japanese pronunciation trainer",
	Long: `hatsuon records your pronunciation of short Japanese phrases, streams
the audio to a scoring backend and shows the assessment.

Commands:
  practice  - interactive session over the lesson catalog
  record    - one headless attempt for a single phrase
  lessons   - list the catalog in session order
  history   - recent sessions and per-phrase statistics
  devices   - available microphones
  formats   - audio formats offered to the backend`,
	SilenceUsage: true,
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError("hatsuon", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HATSUON_CONFIG or ./configs/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.SilenceErrors = true
}

// loadConfig reads --config or the default locations
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadFromEnv()
}

// newLogger creates the CLI logger writing to out
func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	level := cfg.General.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LoggerConfig{
		ServiceName: cfg.General.Name,
		Level:       level,
		Format:      cfg.General.LogFormat,
		Output:      out,
	})
}

// openLogFile opens the configured log file for appending
func openLogFile(cfg *config.Config) (*os.File, error) {
	path := cfg.LogFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, hterror.Wrap(err, "failed to create log directory").
			WithCode(hterror.CodeConfigError).
			WithDetail("path", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, hterror.Wrap(err, "failed to open log file").
			WithCode(hterror.CodeConfigError).
			WithDetail("path", path)
	}
	return f, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
