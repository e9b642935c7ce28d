package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trykimu/videoeditor-sub001/internal/schema"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a timeline document against every structural rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			_, tl, err := loadDocument(args[0])
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				rows := make([][]string, 0, len(verr.Issues))
				for _, i := range verr.Issues {
					rows = append(rows, []string{i.Path, i.Code, i.Message})
				}
				fmt.Fprintln(out, renderTable([]string{"Path", "Code", "Message"}, rows, nil))
				return fmt.Errorf("%s: %d schema issue(s)", args[0], len(verr.Issues))
			}
			if err != nil {
				return err
			}

			violations := tl.Validate()
			if len(violations) == 0 {
				fmt.Fprintf(out, "%s: valid (%d tracks, %d scrubbers)\n", args[0], len(tl.Tracks()), tl.ScrubberCount())
				return nil
			}
			rows := make([][]string, 0, len(violations))
			for _, v := range violations {
				rows = append(rows, []string{v.Path, string(v.Code), v.Message})
			}
			fmt.Fprintln(out, renderTable([]string{"Path", "Code", "Message"}, rows, nil))
			return fmt.Errorf("%s: %d violation(s)", args[0], len(violations))
		},
	}
}
