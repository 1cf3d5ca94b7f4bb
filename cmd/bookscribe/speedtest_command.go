package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSpeedTestCommand(ctx *commandContext) *cobra.Command {
	var model string
	var wordTimestamps bool
	var highlightWords bool

	cmd := &cobra.Command{
		Use:   "speed-test <book> [file]",
		Short: "Measure transcription throughput on a short clip",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, cleanup, err := ctx.openTranscriber()
			if err != nil {
				return err
			}
			defer cleanup()

			sampleFile := ""
			if len(args) == 2 {
				sampleFile = args[1]
			}
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
			result, err := tr.RunSpeedTest(cmd.Context(), args[0], sampleFile, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "model %s (word timestamps: %s, highlighting: %s)\n",
				result.Key.Model, yesNo(result.Key.WordTimestamps), yesNo(result.Key.HighlightWords))
			fmt.Fprintf(out, "processed %.1fs of audio in %.1fs\n", result.ClipAudioSeconds, result.MeasuredSeconds)
			fmt.Fprintf(out, "speed ratio: %.2fx\n", result.Ratio)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Whisper model (defaults to config)")
	cmd.Flags().BoolVar(&wordTimestamps, "word-timestamps", true, "Measure with word-level timestamps (defaults to config)")
	cmd.Flags().BoolVar(&highlightWords, "highlight-words", false, "Measure with word highlighting (defaults to config)")
	return cmd
}
