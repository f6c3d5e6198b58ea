// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesis turns retained findings into a cited markdown report.
// Implements: prd006-synthesis (R1-R4); docs/ARCHITECTURE § Synthesis.
package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Generator produces report prose from a prompt. Implemented by the language
// model client; nil is valid and forces the deterministic template.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request carries everything the synthesizer needs from a finished run.
type Request struct {
	// Query is the original research question.
	Query string

	// Findings are the retained findings in discovery order.
	Findings []types.Finding

	// Contradictions are the flagged opposing pairs.
	Contradictions []types.Contradiction

	// Iterations is how many research iterations ran.
	Iterations int

	// Warnings lists degradations recorded during the run.
	Warnings []string

	// Cancelled marks a run stopped early; the report covers what was
	// collected and says so.
	Cancelled bool
}

// Synthesizer builds the final report. When generation fails, or no
// Generator is configured, it falls back to a deterministic template so a
// run that found sources always yields a report.
type Synthesizer struct {
	Generator Generator
}

// citationRef matches inline citation markers like [3] or [1, 2].
var citationRef = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)

// Synthesize produces the report. Findings are ordered by credibility
// (descending, discovery order breaking ties) and numbered 1..N; that
// numbering is the citation map and the appended source list, so every
// retained finding is cited and every inline marker resolves.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (types.Report, error) {
	ordered := orderFindings(req.Findings)

	citations := make(map[int]types.Finding, len(ordered))
	for i, f := range ordered {
		citations[i+1] = f
	}

	report := types.Report{
		Query:          req.Query,
		Citations:      citations,
		Iterations:     req.Iterations,
		Contradictions: req.Contradictions,
		Cancelled:      req.Cancelled,
	}

	var body string
	switch {
	case req.Cancelled || s.Generator == nil:
		body = s.template(req, ordered)
	default:
		generated, err := s.Generator.Generate(ctx, buildPrompt(req.Query, ordered))
		if err != nil || strings.TrimSpace(generated) == "" {
			report.Degraded = true
			body = s.template(req, ordered)
		} else {
			body = stripOrphanRefs(strings.TrimSpace(generated), len(ordered))
		}
	}

	var b strings.Builder
	b.WriteString(body)
	writeConflicts(&b, req.Contradictions)
	writeNotes(&b, req)
	writeSources(&b, ordered)

	report.Markdown = b.String()
	return report, nil
}

// orderFindings sorts by credibility descending; the sort is stable so ties
// keep discovery order.
func orderFindings(findings []types.Finding) []types.Finding {
	out := append([]types.Finding(nil), findings...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CredibilityScore > out[j].CredibilityScore
	})
	return out
}

// buildPrompt renders the numbered source block the generator cites from.
func buildPrompt(query string, findings []types.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a research report in markdown answering the question: %s\n\n", query)
	b.WriteString("Use ONLY the numbered sources below. Cite claims inline with bracketed source numbers, e.g. [1] or [2, 3]. ")
	b.WriteString("Start with a short summary, then organized sections. Do not invent sources or numbers beyond the list.\n\n")
	b.WriteString("Sources:\n\n")
	for i, f := range findings {
		fmt.Fprintf(&b, "[%d] %s (%s, credibility %.2f)\n%s\n\n", i+1, f.Title, f.Domain, f.CredibilityScore, f.Content)
	}
	return b.String()
}

// stripOrphanRefs removes inline citation markers that point outside 1..n.
// The generator occasionally invents source numbers; dropping the marker is
// safer than leaving a dangling reference.
func stripOrphanRefs(body string, n int) string {
	return citationRef.ReplaceAllStringFunc(body, func(m string) string {
		inner := strings.Trim(m, "[]")
		var kept []string
		for _, part := range strings.Split(inner, ",") {
			part = strings.TrimSpace(part)
			var num int
			if _, err := fmt.Sscanf(part, "%d", &num); err == nil && num >= 1 && num <= n {
				kept = append(kept, part)
			}
		}
		if len(kept) == 0 {
			return ""
		}
		return "[" + strings.Join(kept, ", ") + "]"
	})
}

// template renders the deterministic fallback report: findings listed by
// credibility with their processed content.
func (s *Synthesizer) template(req Request, findings []types.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", req.Query)

	if req.Cancelled {
		b.WriteString("*Research was cancelled before completing. This report covers the sources collected up to that point.*\n\n")
	}

	b.WriteString("## Summary\n\n")
	if len(findings) == 0 {
		b.WriteString("No sources passed the credibility threshold for this query.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Collected %d credible sources across %d research iteration(s). Findings are listed below in order of source credibility.\n\n", len(findings), req.Iterations)

	b.WriteString("## Findings\n")
	for i, f := range findings {
		fmt.Fprintf(&b, "\n### %s [%d]\n\n", f.Title, i+1)
		if f.Content != "" {
			excerpt := f.Content
			if len(excerpt) > 600 {
				excerpt = excerpt[:600] + "..."
			}
			b.WriteString(excerpt)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// writeConflicts appends the conflicting-information section when any pairs
// were flagged.
func writeConflicts(b *strings.Builder, contradictions []types.Contradiction) {
	if len(contradictions) == 0 {
		return
	}
	b.WriteString("\n\n## Conflicting Information\n\n")
	b.WriteString("The following sources make opposing claims; both sides are listed for the reader to weigh.\n\n")
	for _, c := range contradictions {
		fmt.Fprintf(b, "- %s (%s) vs %s (%s): %s\n", c.Source1, c.URL1, c.Source2, c.URL2, c.Signal)
	}
}

// writeNotes appends degradation warnings so the reader knows which
// capabilities fell back during the run.
func writeNotes(b *strings.Builder, req Request) {
	if len(req.Warnings) == 0 {
		return
	}
	b.WriteString("\n\n## Research Notes\n\n")
	for _, w := range req.Warnings {
		fmt.Fprintf(b, "- %s\n", w)
	}
}

// writeSources appends the numbered source list matching the citation map.
func writeSources(b *strings.Builder, findings []types.Finding) {
	if len(findings) == 0 {
		return
	}
	b.WriteString("\n\n## Sources\n\n")
	for i, f := range findings {
		fmt.Fprintf(b, "%d. %s - %s\n", i+1, f.Title, f.URL)
	}
}
