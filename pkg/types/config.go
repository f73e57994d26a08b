package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ProviderConfig holds settings for the source providers used by the
// collection stage.
type ProviderConfig struct {
	HTTPConfig `yaml:",inline"`

	// Providers lists the enabled provider identifiers: web, wikipedia, openalex.
	Providers []string `json:"providers" yaml:"providers"`

	// MaxResults is the per-provider snippet limit for one query (default 3).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// GoogleAPIKey authenticates the Google Custom Search JSON API.
	GoogleAPIKey string `json:"google_api_key,omitempty" yaml:"google_api_key,omitempty"`

	// GoogleCSEID is the Custom Search Engine identifier.
	GoogleCSEID string `json:"google_cse_id,omitempty" yaml:"google_cse_id,omitempty"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`
}

// ReasoningConfig holds settings for the reasoning backend.
type ReasoningConfig struct {
	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxTokens caps the response length per completion (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Timeout bounds a single completion call (default 60s). A hung backend
	// call fails as unavailable instead of stalling the stage.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ReportFormat selects the report export format.
type ReportFormat string

const (
	ReportMarkdown ReportFormat = "markdown"
	ReportJSON     ReportFormat = "json"
	ReportYAML     ReportFormat = "yaml"
)

// ReportConfig holds settings for report export.
type ReportConfig struct {
	// OutputDir is the directory for exported reports (e.g. "output/reports/").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Format selects the export format: markdown, json, or yaml.
	Format ReportFormat `json:"format" yaml:"format"`
}

// PipelineConfig groups all settings consumed by the pipeline orchestrator
// and its stages.
type PipelineConfig struct {
	// MaxDepth bounds the topic tree depth below the root (default 2).
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// MaxBreadth bounds the child topics kept per node (default 5). When the
	// reasoning backend proposes more, the first MaxBreadth in returned
	// order win.
	MaxBreadth int `json:"max_breadth" yaml:"max_breadth"`

	// RetryLimit is the number of retry attempts for transient failures
	// (default 3). Non-transient failures are never retried.
	RetryLimit int `json:"retry_limit" yaml:"retry_limit"`

	// BackoffBase is the base duration for exponential backoff (default 1s).
	// The delay doubles each attempt.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`

	// MaxConcurrent bounds the worker pool for per-node work units within a
	// stage (default 4).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	// IncludeDisputedClaims carries disputed claims into findings as
	// caveats instead of dropping them.
	IncludeDisputedClaims bool `json:"include_disputed_claims" yaml:"include_disputed_claims"`

	// CheckpointPath is the SQLite database for stage checkpoints
	// (default "data/checkpoints.db").
	CheckpointPath string `json:"checkpoint_path" yaml:"checkpoint_path"`

	Provider  ProviderConfig  `json:"provider" yaml:"provider"`
	Reasoning ReasoningConfig `json:"reasoning" yaml:"reasoning"`
	Report    ReportConfig    `json:"report" yaml:"report"`
}

// DefaultPipelineConfig returns the documented defaults. Callers overlay
// config-file and flag values on top.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxDepth:       2,
		MaxBreadth:     5,
		RetryLimit:     3,
		BackoffBase:    time.Second,
		MaxConcurrent:  4,
		CheckpointPath: "data/checkpoints.db",
		Provider: ProviderConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "research-assistant/0.1",
			},
			Providers:  []string{"web", "wikipedia", "openalex"},
			MaxResults: 3,
		},
		Reasoning: ReasoningConfig{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 4096,
			Timeout:   60 * time.Second,
		},
		Report: ReportConfig{
			OutputDir: "output/reports",
			Format:    ReportMarkdown,
		},
	}
}
