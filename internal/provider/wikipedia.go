// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// wikipediaAPIBase is the MediaWiki API endpoint. Declared as a var so
// tests can substitute an httptest server.
var wikipediaAPIBase = "https://en.wikipedia.org/w/api.php"

// wikipediaPageBase is the article URL prefix used for provenance links.
var wikipediaPageBase = "https://en.wikipedia.org/wiki/"

// htmlTagPattern strips the searchmatch markup MediaWiki embeds in snippets.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Wikipedia queries the MediaWiki search API.
type Wikipedia struct {
	Client *http.Client

	userAgent string
}

// NewWikipedia builds a Wikipedia provider from config.
func NewWikipedia(cfg types.ProviderConfig) *Wikipedia {
	return &Wikipedia{
		Client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// Name returns the provider identifier.
func (p *Wikipedia) Name() string { return "wikipedia" }

// wikipediaResponse is the subset of the MediaWiki search response we read.
type wikipediaResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// Search queries the MediaWiki search API and returns cleaned snippets with
// article provenance links.
func (p *Wikipedia) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 3
	}

	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprintf("%d", limit)},
		"format":   {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wikipediaAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: wikipedia: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case httputil.Retryable(resp.StatusCode):
		return nil, fmt.Errorf("%w: wikipedia HTTP %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: wikipedia HTTP %d", ErrRejected, resp.StatusCode)
	}

	var wr wikipediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("parsing wikipedia response: %w", err)
	}

	var results []Result
	for _, hit := range wr.Query.Search {
		snippet := cleanSnippet(hit.Snippet)
		if snippet == "" {
			continue
		}
		results = append(results, Result{
			Text:          hit.Title + ": " + snippet,
			ProvenanceURL: wikipediaPageBase + url.PathEscape(strings.ReplaceAll(hit.Title, " ", "_")),
			Provider:      p.Name(),
		})
	}
	return results, nil
}

// cleanSnippet removes HTML markup and collapses whitespace.
func cleanSnippet(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.Join(strings.Fields(s), " ")
}
