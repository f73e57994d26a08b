// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/checkpoint"
	"github.com/pdiddy/research-assistant/internal/pipeline"
	"github.com/pdiddy/research-assistant/internal/provider"
	"github.com/pdiddy/research-assistant/internal/reasoning"
	"github.com/pdiddy/research-assistant/internal/report"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run <topic>",
	Short: "Research a topic end to end and export the report",
	Long: `Run executes the full pipeline on the given topic: discovery, collection,
verification, synthesis, and reporting. Progress is checkpointed after
every stage; if the run fails partway, "research-assistant resume"
continues it from the last completed stage.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		applyRunFlags(cmd, &cfg)

		topic := strings.Join(args, " ")
		p, store, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := p.Run(cmd.Context(), topic)
		if err != nil {
			if snap != nil {
				fmt.Fprintf(os.Stderr, "run %s failed; resume with: research-assistant resume %s\n", snap.RunID, snap.RunID)
			}
			return err
		}
		return exportSnapshot(snap, cfg.Report)
	},
}

func init() {
	runCmd.Flags().Int("max-depth", 0, "topic tree depth below the root")
	runCmd.Flags().Int("max-breadth", 0, "child topics kept per node")
	runCmd.Flags().Bool("include-disputed", false, "carry disputed claims into findings as caveats")
	runCmd.Flags().String("format", "", "report format: markdown, json, or yaml")
	runCmd.Flags().String("output-dir", "", "directory for exported reports")
	runCmd.Flags().String("checkpoint", "", "SQLite checkpoint database path")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays explicit run flags on the assembled config.
func applyRunFlags(cmd *cobra.Command, cfg *types.PipelineConfig) {
	if cmd.Flags().Changed("max-depth") {
		cfg.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
	}
	if cmd.Flags().Changed("max-breadth") {
		cfg.MaxBreadth, _ = cmd.Flags().GetInt("max-breadth")
	}
	if cmd.Flags().Changed("include-disputed") {
		cfg.IncludeDisputedClaims, _ = cmd.Flags().GetBool("include-disputed")
	}
	if cmd.Flags().Changed("format") {
		format, _ := cmd.Flags().GetString("format")
		cfg.Report.Format = types.ReportFormat(format)
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.Report.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("checkpoint") {
		cfg.CheckpointPath, _ = cmd.Flags().GetString("checkpoint")
	}
}

// buildPipeline assembles the orchestrator and its collaborators from
// config. The caller owns the returned checkpoint store.
func buildPipeline(cfg types.PipelineConfig) (*pipeline.Pipeline, *checkpoint.Store, error) {
	if cfg.Reasoning.APIKey == "" {
		return nil, nil, errors.New("no Anthropic API key: set reasoning.api_key or .secrets/anthropic-api-key")
	}

	providers, err := provider.FromConfig(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}
	engine := reasoning.NewClaudeBackend(cfg.Reasoning)

	store, err := checkpoint.Open(cfg.CheckpointPath)
	if err != nil {
		return nil, nil, err
	}

	return pipeline.New(engine, providers, store, cfg, os.Stderr), store, nil
}

// exportSnapshot writes the report and prints its path.
func exportSnapshot(snap *types.Snapshot, cfg types.ReportConfig) error {
	path, err := report.Export(snap, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("report written: %s\n", path)
	return nil
}
