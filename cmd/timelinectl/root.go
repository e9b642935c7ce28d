// Command timelinectl works with timeline documents offline: it validates,
// inspects and exports snapshot files and can push one to a running editor
// daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trykimu/videoeditor-sub001/internal/config"
	"github.com/trykimu/videoeditor-sub001/internal/snapshot"
	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "timelinectl",
		Short:         "Validate, inspect and export timeline documents",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newImportCommand())

	return rootCmd
}

// loadDocument reads and parses a snapshot file. Shape problems are returned
// as *schema.ValidationError; invariants are not checked here.
func loadDocument(path string) ([]byte, *timeline.Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	tl, err := snapshot.Deserialize(data)
	if err != nil {
		return data, nil, err
	}
	return data, tl, nil
}
