// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// buildConfig overlays config-file and environment values on the documented
// defaults, then fills credentials from .secrets/ when the config left them
// empty.
func buildConfig() types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()

	if viper.IsSet("max_depth") {
		cfg.MaxDepth = viper.GetInt("max_depth")
	}
	if viper.IsSet("max_breadth") {
		cfg.MaxBreadth = viper.GetInt("max_breadth")
	}
	if viper.IsSet("retry_limit") {
		cfg.RetryLimit = viper.GetInt("retry_limit")
	}
	if viper.IsSet("backoff_base") {
		cfg.BackoffBase = viper.GetDuration("backoff_base")
	}
	if viper.IsSet("max_concurrent") {
		cfg.MaxConcurrent = viper.GetInt("max_concurrent")
	}
	if viper.IsSet("include_disputed_claims") {
		cfg.IncludeDisputedClaims = viper.GetBool("include_disputed_claims")
	}
	if viper.IsSet("checkpoint_path") {
		cfg.CheckpointPath = viper.GetString("checkpoint_path")
	}

	if viper.IsSet("provider.providers") {
		cfg.Provider.Providers = viper.GetStringSlice("provider.providers")
	}
	if viper.IsSet("provider.max_results") {
		cfg.Provider.MaxResults = viper.GetInt("provider.max_results")
	}
	if viper.IsSet("provider.timeout") {
		cfg.Provider.Timeout = viper.GetDuration("provider.timeout")
	}
	if viper.IsSet("provider.user_agent") {
		cfg.Provider.UserAgent = viper.GetString("provider.user_agent")
	}

	if viper.IsSet("reasoning.model") {
		cfg.Reasoning.Model = viper.GetString("reasoning.model")
	}
	if viper.IsSet("reasoning.max_tokens") {
		cfg.Reasoning.MaxTokens = viper.GetInt("reasoning.max_tokens")
	}
	if viper.IsSet("reasoning.timeout") {
		cfg.Reasoning.Timeout = viper.GetDuration("reasoning.timeout")
	}

	if viper.IsSet("report.output_dir") {
		cfg.Report.OutputDir = viper.GetString("report.output_dir")
	}
	if viper.IsSet("report.format") {
		cfg.Report.Format = types.ReportFormat(viper.GetString("report.format"))
	}

	cfg.Provider.GoogleAPIKey = secretDefault("google-search-api-key", viper.GetString("provider.google_api_key"))
	cfg.Provider.GoogleCSEID = secretDefault("google-cse-id", viper.GetString("provider.google_cse_id"))
	cfg.Provider.OpenAlexEmail = secretDefault("openalex-email", viper.GetString("provider.openalex_email"))
	cfg.Reasoning.APIKey = secretDefault("anthropic-api-key", viper.GetString("reasoning.api_key"))

	return cfg
}
