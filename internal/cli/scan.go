package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/batchscribe/internal/batch"
	"github.com/fmueller/batchscribe/internal/transcript"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScanCmd(app *appState) *cobra.Command {
	var (
		outputDir string
		format    string
		recursive bool
	)

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "List the audio files a batch would process",
		Long:  "List every supported audio file found in the given paths (or the saved inputs) and whether a transcript already exists for it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := app.settings
			if cmd.Flags().Changed("output-dir") {
				s.OutputDir = outputDir
			}
			if cmd.Flags().Changed("format") {
				s.OutputFormat = format
			}
			if cmd.Flags().Changed("recursive") {
				s.IncludeSubfolders = recursive
			}

			inputs := s.InputPaths
			if len(args) > 0 {
				inputs = absPaths(args)
			}
			if len(inputs) == 0 {
				return batch.ErrNoInputs
			}

			outFormat, err := transcript.ParseFormat(s.OutputFormat)
			if err != nil {
				return err
			}

			files, err := batch.Gather(inputs, s.IncludeSubfolders)
			if err != nil {
				for _, line := range strings.Split(err.Error(), "\n") {
					app.log().Warn("skipping unreadable input", zap.String("detail", line))
				}
			}

			pending := 0
			out := cmd.OutOrStdout()
			for _, file := range files {
				target := batch.OutputPath(s.OutputDir, file, outFormat)
				status := "done"
				if _, err := os.Stat(target); err != nil {
					status = "new"
					pending++
				}
				fmt.Fprintf(out, "%-4s  %s -> %s\n", status, file, target)
			}
			fmt.Fprintf(out, "%d files, %d to transcribe\n", len(files), pending)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory checked for existing transcripts")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format checked for existing transcripts")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include subfolders of input folders")
	return cmd
}
