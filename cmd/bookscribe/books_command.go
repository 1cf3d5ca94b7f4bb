package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newBooksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "books [book]",
		Short: "List books, or the files of one book with caption state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, cleanup, err := ctx.openTranscriber()
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				books, err := tr.Library().ListBooks()
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(books))
				for _, book := range books {
					files, err := tr.Library().ListAudioFiles(book.Name)
					if err != nil {
						return err
					}
					captioned := 0
					for _, file := range files {
						if tr.Library().CaptionExists(book.Name, file) {
							captioned++
						}
					}
					rows = append(rows, []string{
						book.Name,
						book.DisplayTitle,
						strconv.Itoa(len(files)),
						fmt.Sprintf("%d/%d", captioned, len(files)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Book", "Title", "Files", "Captioned"},
					rows, 2, 3,
				))
				return nil
			}

			book := args[0]
			files, err := tr.Library().ListAudioFiles(book)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(files))
			for _, file := range files {
				status, err := tr.FileStatus(cmd.Context(), book, file)
				if err != nil {
					return err
				}
				state := "-"
				if status.JobState != "" {
					state = string(status.JobState)
				}
				rows = append(rows, []string{
					file,
					yesNo(status.HasCaption),
					yesNo(status.HasWordTimestamps),
					state,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Caption", "Word timestamps", "Job"},
				rows,
			))
			return nil
		},
	}
}
