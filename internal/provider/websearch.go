// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// webSearchBase is the Google Custom Search JSON API endpoint. Declared as
// a var so tests can substitute an httptest server.
var webSearchBase = "https://www.googleapis.com/customsearch/v1"

// WebSearch queries the Google Custom Search JSON API.
type WebSearch struct {
	Client *http.Client
	APIKey string
	CSEID  string

	userAgent string
}

// NewWebSearch builds a WebSearch provider from config.
func NewWebSearch(cfg types.ProviderConfig) *WebSearch {
	return &WebSearch{
		Client:    &http.Client{Timeout: cfg.Timeout},
		APIKey:    cfg.GoogleAPIKey,
		CSEID:     cfg.GoogleCSEID,
		userAgent: cfg.UserAgent,
	}
}

// Name returns the provider identifier.
func (w *WebSearch) Name() string { return "web" }

// googleSearchResponse is the subset of the Custom Search response we read.
type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

// Search queries the API and returns snippets with provenance links.
// Missing credentials fail with ErrRejected: retrying cannot help.
func (w *WebSearch) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if w.APIKey == "" || w.CSEID == "" {
		return nil, fmt.Errorf("%w: google search credentials not configured", ErrRejected)
	}
	if limit <= 0 {
		limit = 3
	}
	if limit > 10 {
		limit = 10 // API maximum per request
	}

	params := url.Values{
		"key": {w.APIKey},
		"cx":  {w.CSEID},
		"q":   {query},
		"num": {fmt.Sprintf("%d", limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, webSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := httputil.DoWithRetry(ctx, w.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: google search: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden:
		// Daily quota exhausted or key revoked.
		return nil, fmt.Errorf("%w: google search HTTP 403", ErrRejected)
	case httputil.Retryable(resp.StatusCode):
		return nil, fmt.Errorf("%w: google search HTTP %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: google search HTTP %d", ErrRejected, resp.StatusCode)
	}

	var gsr googleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&gsr); err != nil {
		return nil, fmt.Errorf("parsing google search response: %w", err)
	}

	var results []Result
	for _, item := range gsr.Items {
		text := item.Snippet
		if item.Title != "" {
			text = item.Title + ": " + item.Snippet
		}
		results = append(results, Result{
			Text:          text,
			ProvenanceURL: item.Link,
			Provider:      w.Name(),
		})
	}
	return results, nil
}
