// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/checkpoint"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Re-export the report for a checkpointed run",
	Long: `Report loads the latest checkpoint of a run and exports its report without
executing any pipeline stages. Useful for rendering an existing run in a
different format. Without a run id, the most recent run is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		if cmd.Flags().Changed("format") {
			format, _ := cmd.Flags().GetString("format")
			cfg.Report.Format = types.ReportFormat(format)
		}
		if cmd.Flags().Changed("output-dir") {
			cfg.Report.OutputDir, _ = cmd.Flags().GetString("output-dir")
		}

		store, err := checkpoint.Open(cfg.CheckpointPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runID := ""
		if len(args) == 1 {
			runID = args[0]
		}
		if runID == "" {
			runID, err = store.LatestRun()
			if err != nil {
				return err
			}
			if runID == "" {
				return fmt.Errorf("checkpoint store is empty")
			}
		}

		_, snap, err := store.LoadLatest(runID)
		if err != nil {
			return err
		}
		if snap == nil {
			return fmt.Errorf("no checkpoints for run %s", runID)
		}
		return exportSnapshot(snap, cfg.Report)
	},
}

func init() {
	reportCmd.Flags().String("format", "", "report format: markdown, json, or yaml")
	reportCmd.Flags().String("output-dir", "", "directory for exported reports")

	rootCmd.AddCommand(reportCmd)
}
