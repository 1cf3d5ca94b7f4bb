package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bookscribe/internal/speed"
)

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var model string
	var wordTimestamps bool
	var highlightWords bool

	cmd := &cobra.Command{
		Use:   "estimate <book> <file>",
		Short: "Estimate transcription time from recorded speed measurements",
		Args:  cobra.ExactArgs(2),
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
			seconds, err := tr.Estimate(cmd.Context(), args[0], args[1], opts)
			if errors.Is(err, speed.ErrNoEstimate) {
				fmt.Fprintln(cmd.OutOrStdout(), "no estimate available; run `bookscribe speed-test` first")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "estimated time: %s\n", time.Duration(seconds*float64(time.Second)).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Whisper model (defaults to config)")
	cmd.Flags().BoolVar(&wordTimestamps, "word-timestamps", true, "Estimate with word-level timestamps (defaults to config)")
	cmd.Flags().BoolVar(&highlightWords, "highlight-words", false, "Estimate with word highlighting (defaults to config)")
	return cmd
}
