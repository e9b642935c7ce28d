package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trykimu/videoeditor-sub001/internal/export"
)

func newExportCommand() *cobra.Command {
	var trackID, title, outDir string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write one track of a timeline document as an edit decision list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tl, err := loadDocument(args[0])
			if err != nil {
				return err
			}

			name := export.SanitizeName(title, 120)
			if name == "" {
				base := filepath.Base(args[0])
				name = export.SanitizeName(strings.TrimSuffix(base, filepath.Ext(base)), 120)
			}

			res, err := export.FromTimeline(tl, trackID, name)
			if err != nil {
				return err
			}
			if res.EventCount == 0 {
				return fmt.Errorf("track has no exportable clips")
			}

			out := cmd.OutOrStdout()
			if outDir == "" {
				fmt.Fprint(out, res.EDL)
			} else {
				if err := export.WriteFile(outDir, res); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %d events to %s\n", res.EventCount, res.OutputPath)
			}
			if len(res.Skipped) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped clips without media: %s\n", strings.Join(res.Skipped, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&trackID, "track", "", "Track to export (default: first track)")
	cmd.Flags().StringVar(&title, "title", "", "EDL title (default: file name)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to write <title>.edl into instead of stdout")
	return cmd
}
