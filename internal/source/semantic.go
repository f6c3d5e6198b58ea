// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared as
// a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,year,citationCount,url,externalIds,publicationDate"

// SemanticScholarAdapter queries the Semantic Scholar API (prd002-sources R4).
type SemanticScholarAdapter struct {
	Client *http.Client
	APIKey string
}

// Name returns the adapter identifier.
func (a *SemanticScholarAdapter) Name() string { return "semantic_scholar" }

// Type returns the source category.
func (a *SemanticScholarAdapter) Type() types.SourceType { return types.SourceAcademic }

// Search queries the Semantic Scholar API and returns papers with abstracts.
// Papers without an abstract are skipped: they carry nothing to synthesize.
func (a *SemanticScholarAdapter) Search(ctx context.Context, query string, cfg types.SourceConfig) ([]types.Finding, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	maxResults := cfg.MaxAcademicResults
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {semanticFields},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	if a.APIKey != "" {
		req.Header.Set("x-api-key", a.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	var findings []types.Finding
	for _, paper := range sr.Data {
		if paper.Abstract == "" {
			continue
		}

		paperURL := paper.URL
		if paperURL == "" && paper.ExternalIDs.DOI != "" {
			paperURL = "https://doi.org/" + paper.ExternalIDs.DOI
		}
		if paperURL == "" {
			continue
		}

		var authors []string
		for _, au := range paper.Authors {
			if au.Name != "" {
				authors = append(authors, au.Name)
			}
		}

		f := types.Finding{
			URL:        paperURL,
			Title:      paper.Title,
			Snippet:    SnippetOf(paper.Abstract, 300),
			Content:    formatPaperContent(paper.Title, authors, paper.Abstract),
			SourceType: types.SourceAcademic,
			Domain:     "semanticscholar.org",
		}
		if d := Domain(paperURL); d != "" {
			f.Domain = d
		}

		if paper.PublicationDate != "" {
			if t, parseErr := time.Parse("2006-01-02", paper.PublicationDate); parseErr == nil {
				f.PublishedAt = t
			}
		} else if paper.Year > 0 {
			f.PublishedAt = time.Date(paper.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		}

		findings = append(findings, f)
	}
	return findings, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	CitationCount   int                 `json:"citationCount"`
	URL             string              `json:"url"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}
