// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/deep-research/pkg/types"
)

// duckduckgoBase is the DuckDuckGo HTML results endpoint. Declared as a var
// so tests can substitute an httptest server.
var duckduckgoBase = "https://html.duckduckgo.com/html/"

// fetchContentLimit caps how many result pages the adapter downloads per
// sub-query when FetchPageContent is enabled.
const fetchContentLimit = 5

// WebAdapter searches the general web via DuckDuckGo's HTML interface
// (prd002-sources R1). When FetchPageContent is enabled it downloads the top result
// pages and converts them to markdown for downstream synthesis.
type WebAdapter struct {
	Client *http.Client

	once sync.Once
	conv *converter.Converter
}

// Name returns the adapter identifier.
func (a *WebAdapter) Name() string { return "web" }

// Type returns the source category.
func (a *WebAdapter) Type() types.SourceType { return types.SourceWeb }

// Search queries DuckDuckGo and returns results, optionally with fetched
// page content.
func (a *WebAdapter) Search(ctx context.Context, query string, cfg types.SourceConfig) ([]types.Finding, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty web query")
	}

	maxResults := cfg.MaxWebResults
	if maxResults <= 0 {
		maxResults = 10
	}

	reqURL := duckduckgoBase + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned HTTP %d", resp.StatusCode)
	}

	findings, err := parseResultsPage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing web results: %w", err)
	}
	if len(findings) > maxResults {
		findings = findings[:maxResults]
	}

	if cfg.FetchPageContent {
		a.fetchContents(ctx, findings, cfg)
	}
	return findings, nil
}

// fetchContents downloads page bodies for the top results concurrently.
// Fetch failures leave the snippet as content; they never fail the search.
func (a *WebAdapter) fetchContents(ctx context.Context, findings []types.Finding, cfg types.SourceConfig) {
	n := len(findings)
	if n > fetchContentLimit {
		n = fetchContentLimit
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(f *types.Finding) {
			defer wg.Done()
			if content, err := a.fetchPage(ctx, f.URL, cfg); err == nil && content != "" {
				f.Content = content
			}
		}(&findings[i])
	}
	wg.Wait()
}

// fetchPage downloads one URL and converts the HTML to markdown.
func (a *WebAdapter) fetchPage(ctx context.Context, pageURL string, cfg types.SourceConfig) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	a.once.Do(func() {
		a.conv = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		)
	})

	md, err := a.conv.ConvertString(string(body))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// parseResultsPage extracts result links and snippets from the DuckDuckGo
// HTML page. Result anchors carry class result__a, snippets result__snippet.
func parseResultsPage(r io.Reader) ([]types.Finding, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var findings []types.Finding
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A && hasClass(n, "result__a") {
			href := attrValue(n, "href")
			title := collectText(n)
			if link := resolveResultURL(href); link != "" && title != "" {
				findings = append(findings, types.Finding{
					URL:        link,
					Title:      title,
					SourceType: types.SourceWeb,
					Domain:     Domain(link),
				})
			}
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result__snippet") {
			if len(findings) > 0 && findings[len(findings)-1].Snippet == "" {
				findings[len(findings)-1].Snippet = collectText(n)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return findings, nil
}

// resolveResultURL unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...)
// to the destination URL. Direct links pass through unchanged.
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && u.Path == "/l/" {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collectText extracts the trimmed text content of a node subtree.
func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
