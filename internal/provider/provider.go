// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider defines the source provider capability used by the
// collection stage and ships adapters for Google Custom Search, Wikipedia,
// and OpenAlex. Each provider implements the same interface per the
// Strategy pattern; the pipeline depends only on the interface.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrUnavailable marks a transient provider failure (network, timeout,
// rate limit). Callers may retry with backoff.
var ErrUnavailable = errors.New("provider unavailable")

// ErrRejected marks a permanent provider failure (quota exhausted, bad
// credentials). Callers must not retry.
var ErrRejected = errors.New("provider rejected request")

// Result is one retrieved snippet with provenance.
type Result struct {
	// Text is the snippet content.
	Text string

	// ProvenanceURL points at the original source.
	ProvenanceURL string

	// Provider is the name of the backend that produced the snippet.
	Provider string
}

// Provider queries a single external information source.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// FromConfig builds the provider set named by cfg.Providers. Unknown
// identifiers are an error: a misspelled provider is a configuration
// mistake, not a coverage gap.
func FromConfig(cfg types.ProviderConfig) ([]Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	var providers []Provider
	for _, name := range cfg.Providers {
		switch name {
		case "web":
			providers = append(providers, NewWebSearch(cfg))
		case "wikipedia":
			providers = append(providers, NewWikipedia(cfg))
		case "openalex":
			providers = append(providers, NewOpenAlex(cfg))
		default:
			return nil, fmt.Errorf("unknown provider %q: use web, wikipedia, or openalex", name)
		}
	}
	return providers, nil
}
