// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     cmd
// Description: CLI command for a single headless attempt
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/internal/practice/stream"
	"github.com/msto63/hatsuon/internal/practice/wav"
	"github.com/spf13/cobra"
)

// fileTail is waited after a replayed file so the last frames reach the encoder
const fileTail = 200 * time.Millisecond

var recordFile string

var recordCmd = &cobra.Command{
	Use:   "record <lesson-id>",
	Short: "Records one attempt and prints the feedback",
	Long: `Records one attempt for the given phrase and prints every feedback
event of the backend.

Without --file the microphone records until Enter is pressed. With
--file a 16-bit PCM WAV recording is replayed in real time instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVarP(&recordFile, "file", "f", "", "WAV file to replay instead of the microphone")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	var length time.Duration
	if recordFile != "" {
		if length, err = recordingLength(recordFile); err != nil {
			return err
		}
	}

	a, err := newApp(cfg, logger, appOptions{RecordingFile: recordFile, History: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	u, err := a.lessons.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Phrase %s: %s", u.ID, u.Text)
	if u.Romaji != "" {
		fmt.Printf(" (%s)", u.Romaji)
	}
	fmt.Println()

	unsubscribe := a.engine.Bus().Subscribe(printFeedback)
	defer unsubscribe()

	attempt := a.engine.NewAttempt(u.ID)
	if err := attempt.StartStreaming(ctx); err != nil {
		return err
	}

	if recordFile != "" {
		fmt.Printf("Replaying %s (%.1fs)...\n", recordFile, length.Seconds())
		waitFor(ctx, time.After(length+fileTail))
	} else {
		fmt.Println("Recording... press Enter to stop")
		waitFor(ctx, enterPressed())
	}

	if ctx.Err() != nil {
		attempt.Close()
		<-attempt.Done()
		return attempt.Err()
	}
	if err := attempt.StopStreaming(); err != nil {
		// Errored while recording, e.g. the connection dropped
		<-attempt.Done()
		if aerr := attempt.Err(); aerr != nil {
			return aerr
		}
		return err
	}
	fmt.Println("Waiting for feedback...")

	select {
	case <-attempt.Settled():
	case <-ctx.Done():
		attempt.Close()
	}
	<-attempt.Done()

	stats := attempt.Stats()
	logger.Debug("Attempt finished", "state", attempt.State().String(), "format", stats.Format, "chunks", stats.ChunksSent, "bytes", stats.BytesSent)

	if attempt.State() == stream.StateErrored {
		return attempt.Err()
	}
	return nil
}

// printFeedback prints one bus event
func printFeedback(ev feedback.Event) {
	switch ev.Kind {
	case feedback.KindChunkAck:
		if ev.Ack != nil {
			fmt.Printf("  [+] chunk received (%d bytes, %d total)\n", ev.Ack.ChunkSize, ev.Ack.TotalChunks)
		}
	case feedback.KindResult:
		if ev.Result == nil {
			return
		}
		r := ev.Result
		fmt.Println()
		fmt.Printf("Score:    %.0f%% %s\n", r.Score, r.Label)
		if r.Transcription != "" {
			fmt.Printf("Heard:    %s\n", r.Transcription)
		}
		if r.ExpectedText != "" {
			fmt.Printf("Expected: %s\n", r.ExpectedText)
		}
		for k, v := range r.Analysis {
			fmt.Printf("  %-12s %s\n", k, strings.TrimSpace(string(v)))
		}
	case feedback.KindError:
		if ev.Failure != nil {
			fmt.Printf("  [-] %s (%s)\n", ev.Failure.Message, ev.Failure.Code)
		}
	}
}

// recordingLength returns the playing time of a WAV file
func recordingLength(path string) (time.Duration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, hterror.Wrap(err, "failed to read recording").
			WithCode(hterror.CodeInvalidInput).
			WithDetail("path", path)
	}
	format, pcm, err := wav.Parse(data)
	if err != nil {
		return 0, hterror.Wrap(err, "failed to parse recording").
			WithCode(hterror.CodeInvalidInput).
			WithDetail("path", path)
	}
	if format.ByteRate() <= 0 {
		return 0, hterror.New("recording has no sample rate").
			WithCode(hterror.CodeInvalidInput).
			WithDetail("path", path)
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(format.ByteRate()), nil
}

func enterPressed() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		close(done)
	}()
	return done
}

func waitFor[T any](ctx context.Context, ch <-chan T) {
	select {
	case <-ch:
	case <-ctx.Done():
	}
}
