package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCapabilitiesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show which optional flags the installed whisper supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, cleanup, err := ctx.openTranscriber()
			if err != nil {
				return err
			}
			defer cleanup()

			caps := tr.ProbeCapabilities(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "installed:        %s\n", yesNo(caps.Installed))
			fmt.Fprintf(out, "word timestamps:  %s\n", yesNo(caps.WordTimestamps))
			fmt.Fprintf(out, "highlight words:  %s\n", yesNo(caps.HighlightWords))
			return nil
		},
	}
}
