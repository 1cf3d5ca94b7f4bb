package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bookscribe/internal/jobs"
	"bookscribe/internal/transcriber"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var model string
	var wordTimestamps bool
	var highlightWords bool
	var parallel bool
	var maxWorkers int

	cmd := &cobra.Command{
		Use:   "transcribe <book> [file]",
		Short: "Transcribe one file, or every uncaptioned file of a book",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, cleanup, err := ctx.openTranscriber()
			if err != nil {
				return err
			}
			defer cleanup()

			opts := tr.Defaults()
			if model != "" {
				opts.Model = model
			}
			if cmd.Flags().Changed("word-timestamps") {
				opts.WordTimestamps = wordTimestamps
			}
			if cmd.Flags().Changed("highlight-words") {
				opts.HighlightWords = highlightWords
			}
			out := cmd.OutOrStdout()

			if len(args) == 2 {
				book, file := args[0], args[1]
				if _, err := tr.StartTranscription(cmd.Context(), book, file, opts); err != nil {
					if errors.Is(err, transcriber.ErrCaptionExists) {
						fmt.Fprintf(out, "%s/%s already has a caption\n", book, file)
						return nil
					}
					return err
				}
				return streamJobLog(cmd, tr, book, file)
			}

			book := args[0]
			batch, err := tr.StartBatch(cmd.Context(), book, opts, parallel, maxWorkers)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "batch %s dispatched\n", batch.ID)

			select {
			case <-batch.Done():
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
			counts := batch.Counts()
			fmt.Fprintf(out, "started: %d, skipped (captioned): %d, already running: %d, failed to start: %d\n",
				len(counts.Started), len(counts.Skipped), len(counts.AlreadyRunning), len(counts.Failed))
			for _, file := range counts.Started {
				view, ok := tr.JobStatus(book, file)
				if !ok {
					continue
				}
				fmt.Fprintf(out, "  %s: %s\n", file, view.State)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Whisper model (defaults to config)")
	cmd.Flags().BoolVar(&wordTimestamps, "word-timestamps", true, "Request word-level timestamps (defaults to config)")
	cmd.Flags().BoolVar(&highlightWords, "highlight-words", false, "Request word highlighting (defaults to config; implies word timestamps)")
	cmd.Flags().BoolVar(&parallel, "parallel", true, "Run batch jobs concurrently")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Concurrent jobs for batch runs (defaults to config)")
	return cmd
}

// streamJobLog echoes new log lines until the job reaches a terminal state.
func streamJobLog(cmd *cobra.Command, tr *transcriber.Transcriber, book, file string) error {
	out := cmd.OutOrStdout()
	cursor := 0
	for {
		lines, next, state, ok := tr.PollLog(book, file, cursor)
		if !ok {
			return fmt.Errorf("no job for %s/%s", book, file)
		}
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		cursor = next
		if state.Terminal() && len(lines) == 0 {
			if state == jobs.StateFailed {
				return fmt.Errorf("transcription of %s/%s failed", book, file)
			}
			fmt.Fprintf(out, "%s/%s transcribed\n", book, file)
			return nil
		}

		select {
		case <-cmd.Context().Done():
			_ = tr.CancelJob(book, file)
			return cmd.Context().Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
