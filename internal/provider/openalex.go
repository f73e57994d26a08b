// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

// OpenAlex queries the OpenAlex works API for academic sources.
type OpenAlex struct {
	Client *http.Client

	// Email is sent as the mailto parameter for polite pool access.
	Email string

	userAgent string
}

// NewOpenAlex builds an OpenAlex provider from config.
func NewOpenAlex(cfg types.ProviderConfig) *OpenAlex {
	return &OpenAlex{
		Client:    &http.Client{Timeout: cfg.Timeout},
		Email:     cfg.OpenAlexEmail,
		userAgent: cfg.UserAgent,
	}
}

// Name returns the provider identifier.
func (b *OpenAlex) Name() string { return "openalex" }

// Search queries the OpenAlex API and returns title+abstract snippets with
// DOI-preferring provenance links.
func (b *OpenAlex) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 3
	}
	if limit > 200 {
		limit = 200
	}

	params := url.Values{
		"search":   {query},
		"per_page": {fmt.Sprintf("%d", limit)},
		"page":     {"1"},
	}
	if b.Email != "" {
		params.Set("mailto", b.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: openalex: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case httputil.Retryable(resp.StatusCode):
		return nil, fmt.Errorf("%w: openalex HTTP %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: openalex HTTP %d", ErrRejected, resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing openalex response: %w", err)
	}

	var results []Result
	for _, work := range oar.Results {
		abstract := reconstructAbstract(work.AbstractInvertedIndex)
		if work.Title == "" && abstract == "" {
			continue
		}

		text := work.Title
		if abstract != "" {
			if text != "" {
				text += ": "
			}
			text += abstract
		}

		// Prefer the DOI link; fall back to the OpenAlex work URL.
		provenance := work.DOI
		if provenance == "" {
			provenance = work.ID
		}

		results = append(results, Result{
			Text:          text,
			ProvenanceURL: provenance,
			Provider:      b.Name(),
		})
	}
	return results, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string           `json:"id"`
	Title                 string           `json:"title"`
	DOI                   string           `json:"doi"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}
