// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package process normalizes raw findings before scoring and synthesis.
// Implements: prd003-processing (R1-R3); docs/ARCHITECTURE § Processing.
package process

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/pdiddy/deep-research/internal/source"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Boilerplate patterns stripped from fetched page content. Web pages arrive
// converted to markdown but still carry newsletter prompts, ad labels and
// cookie banners inline with the article text.
var (
	reSubscribe  = regexp.MustCompile(`(?i)subscribe[^.\n]*newsletter[^.\n]*\.?`)
	reAdvert     = regexp.MustCompile(`(?i)\badvertisement\b`)
	reCookie     = regexp.MustCompile(`(?i)cookie (policy|consent|notice)[^.\n]*\.?`)
	reBareURL    = regexp.MustCompile(`https?://\S+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Processor cleans and truncates finding content. Processing is pure: it
// never fails, never performs I/O, and running it twice yields the same
// finding as running it once.
type Processor struct {
	// MaxContentLength bounds cleaned content. Zero means the default.
	MaxContentLength int

	policy *bluemonday.Policy
}

const defaultMaxContentLength = 4000

// New returns a Processor with the given content length bound.
func New(maxContentLength int) *Processor {
	if maxContentLength <= 0 {
		maxContentLength = defaultMaxContentLength
	}
	return &Processor{
		MaxContentLength: maxContentLength,
		policy:           bluemonday.StrictPolicy(),
	}
}

// Process returns a cleaned copy of the finding. The input is not mutated.
// Empty content falls back to the snippet so every finding carries some text
// into scoring.
func (p *Processor) Process(f types.Finding) types.Finding {
	out := f

	content := f.Content
	if strings.TrimSpace(content) == "" {
		content = f.Snippet
	}
	out.Content = p.clean(content)
	out.Snippet = p.cleanSnippet(f.Snippet)
	out.Title = strings.TrimSpace(reWhitespace.ReplaceAllString(f.Title, " "))

	if out.Domain == "" {
		out.Domain = source.Domain(out.URL)
	}
	return out
}

// ProcessAll cleans a batch of findings, preserving order.
func (p *Processor) ProcessAll(findings []types.Finding) []types.Finding {
	out := make([]types.Finding, len(findings))
	for i, f := range findings {
		out[i] = p.Process(f)
	}
	return out
}

// clean strips markup and boilerplate, collapses whitespace and truncates at
// a sentence boundary.
func (p *Processor) clean(text string) string {
	text = p.policy.Sanitize(text)
	text = reSubscribe.ReplaceAllString(text, "")
	text = reAdvert.ReplaceAllString(text, "")
	text = reCookie.ReplaceAllString(text, "")
	text = reBareURL.ReplaceAllString(text, "")
	text = strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
	return truncateAtSentence(text, p.MaxContentLength)
}

// cleanSnippet applies the same cleanup without truncation rules beyond a
// short cap. Snippets feed progress events, not synthesis.
func (p *Processor) cleanSnippet(text string) string {
	text = p.policy.Sanitize(text)
	text = strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
	if len(text) > 300 {
		text = text[:runeBoundary(text, 300)]
	}
	return text
}

// truncateAtSentence cuts text to at most max bytes, preferring the last
// full sentence. If no period falls past 70% of the limit the text is hard
// cut with an ellipsis marker; the marker fits inside max so re-processing a
// truncated finding leaves it unchanged.
func truncateAtSentence(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:runeBoundary(text, max)]
	if idx := strings.LastIndex(cut, "."); idx > int(float64(max)*0.7) {
		return cut[:idx+1]
	}
	return text[:runeBoundary(text, max-3)] + "..."
}

// runeBoundary backs an index up to the nearest UTF-8 rune start so a slice
// never splits a multi-byte character.
func runeBoundary(s string, i int) int {
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
