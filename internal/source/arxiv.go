// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivAdapter queries the arXiv API (prd002-sources R3).
type ArxivAdapter struct {
	Client *http.Client
}

// Name returns the adapter identifier.
func (a *ArxivAdapter) Name() string { return "arxiv" }

// Type returns the source category.
func (a *ArxivAdapter) Type() types.SourceType { return types.SourceAcademic }

// Search queries the arXiv API and returns paper metadata with abstracts.
func (a *ArxivAdapter) Search(ctx context.Context, query string, cfg types.SourceConfig) ([]types.Finding, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	maxResults := cfg.MaxAcademicResults
	if maxResults <= 0 {
		maxResults = 5
	}

	reqURL := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, url.QueryEscape("all:"+query), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var findings []types.Finding
	for _, entry := range feed.Entries {
		title := strings.TrimSpace(entry.Title)
		abstract := strings.TrimSpace(entry.Summary)
		if entry.ID == "" || title == "" {
			continue
		}

		var authors []string
		for _, au := range entry.Authors {
			authors = append(authors, strings.TrimSpace(au.Name))
		}

		f := types.Finding{
			URL:        entry.ID,
			Title:      title,
			Snippet:    SnippetOf(abstract, 300),
			Content:    formatPaperContent(title, authors, abstract),
			SourceType: types.SourceAcademic,
			Domain:     "arxiv.org",
		}

		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			f.PublishedAt = t
		}

		findings = append(findings, f)
	}
	return findings, nil
}

// formatPaperContent renders paper metadata as the content block downstream
// synthesis sees. Shared by both academic adapters.
func formatPaperContent(title string, authors []string, abstract string) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	if len(authors) > 0 {
		shown := authors
		if len(shown) > 5 {
			shown = shown[:5]
		}
		b.WriteString("Authors: ")
		b.WriteString(strings.Join(shown, ", "))
		if len(authors) > 5 {
			fmt.Fprintf(&b, " et al. (%d authors)", len(authors))
		}
		b.WriteString("\n\n")
	}
	b.WriteString("Abstract: ")
	b.WriteString(abstract)
	return b.String()
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}
