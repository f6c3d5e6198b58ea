// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source queries heterogeneous search providers behind one adapter
// interface. Implements: prd002-sources (R1-R4);
//
//	docs/ARCHITECTURE § Sources.
package source

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Adapter searches a single external provider. Each adapter (web, Wikipedia,
// arXiv, Semantic Scholar) implements this interface per the Strategy
// pattern; new sources register with the orchestrator without modifying it.
// Adapters return raw findings (no scoring, no processing) and fail with a
// provider-specific error rather than panicking. A failure degrades to zero
// findings at the orchestrator boundary.
type Adapter interface {
	Name() string
	Type() types.SourceType
	Search(ctx context.Context, query string, cfg types.SourceConfig) ([]types.Finding, error)
}

// Domain extracts the host from a URL with any www. prefix removed. An
// unparsable URL yields an empty domain, never an error.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// SnippetOf returns roughly the first n bytes of text for progress display,
// cut at a rune boundary so the snippet stays valid UTF-8.
func SnippetOf(text string, n int) string {
	text = strings.TrimSpace(text)
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
