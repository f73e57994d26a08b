// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/pipeline"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Continue an interrupted run from its last checkpoint",
	Long: `Resume loads the latest checkpoint for the given run and continues the
pipeline with the first stage that has not completed. Completed stages are
never re-run. Without a run id, the most recently checkpointed run is
resumed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()

		runID := ""
		if len(args) == 1 {
			runID = args[0]
		}

		p, store, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := p.Resume(cmd.Context(), runID)
		if errors.Is(err, pipeline.ErrRunCompleted) {
			fmt.Fprintf(os.Stderr, "run %s already completed; exporting its report\n", snap.RunID)
			return exportSnapshot(snap, cfg.Report)
		}
		if err != nil {
			if snap != nil {
				fmt.Fprintf(os.Stderr, "run %s failed again; resume with: research-assistant resume %s\n", snap.RunID, snap.RunID)
			}
			return err
		}
		return exportSnapshot(snap, cfg.Report)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
