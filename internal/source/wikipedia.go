// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// wikipediaAPIBase is the MediaWiki action API endpoint. Declared as a var
// so tests can substitute an httptest server.
var wikipediaAPIBase = "https://en.wikipedia.org/w/api.php"

// WikipediaAdapter retrieves encyclopedia articles for foundational context
// (prd002-sources R2). It uses a search generator so title search and intro extraction
// happen in one round trip.
type WikipediaAdapter struct {
	Client *http.Client
}

// Name returns the adapter identifier.
func (a *WikipediaAdapter) Name() string { return "wikipedia" }

// Type returns the source category.
func (a *WikipediaAdapter) Type() types.SourceType { return types.SourceWikipedia }

// Search queries Wikipedia and returns article intro extracts.
func (a *WikipediaAdapter) Search(ctx context.Context, query string, cfg types.SourceConfig) ([]types.Finding, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Wikipedia query")
	}

	maxResults := cfg.MaxWikipediaResults
	if maxResults <= 0 {
		maxResults = 3
	}

	params := url.Values{
		"action":      {"query"},
		"generator":   {"search"},
		"gsrsearch":   {query},
		"gsrlimit":    {fmt.Sprintf("%d", maxResults)},
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"format":      {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wikipediaAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Wikipedia API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Wikipedia API returned HTTP %d", resp.StatusCode)
	}

	var wr wikipediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("parsing Wikipedia response: %w", err)
	}

	// The pages object is keyed by page ID; restore search ranking via the
	// index field.
	pages := make([]wikipediaPage, 0, len(wr.Query.Pages))
	for _, p := range wr.Query.Pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	var findings []types.Finding
	for _, p := range pages {
		if p.Title == "" {
			continue
		}
		pageURL := "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(p.Title, " ", "_")
		findings = append(findings, types.Finding{
			URL:        pageURL,
			Title:      p.Title,
			Snippet:    SnippetOf(p.Extract, 300),
			Content:    p.Extract,
			SourceType: types.SourceWikipedia,
			Domain:     "en.wikipedia.org",
		})
	}
	return findings, nil
}

// MediaWiki API JSON structures.
type wikipediaResponse struct {
	Query wikipediaQuery `json:"query"`
}

type wikipediaQuery struct {
	Pages map[string]wikipediaPage `json:"pages"`
}

type wikipediaPage struct {
	PageID  int    `json:"pageid"`
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}
