// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package credibility scores findings and flags contradictions between them.
// Implements: prd004-credibility (R1-R4); docs/ARCHITECTURE § Credibility.
package credibility

import (
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Scorer assigns each finding a credibility score in [-1, 1] from additive
// rule tables: a base weight per source type, a domain reputation adjustment,
// and content-quality heuristics. Scoring is deterministic; identical
// findings under identical configuration always score the same.
type Scorer struct {
	cfg types.CredibilityConfig
}

// NewScorer builds a Scorer. A zero-value config falls back to the stock
// tables.
func NewScorer(cfg types.CredibilityConfig) *Scorer {
	if cfg.TypeWeights == nil && cfg.DomainAdjustments == nil {
		cfg = types.DefaultCredibilityConfig()
	}
	return &Scorer{cfg: cfg}
}

// Phrases that indicate substantive, evidence-backed writing.
var qualityMarkers = []string{
	"%", "study", "research", "data", "according to",
	"published", "found that", "results", "evidence", "analysis",
}

// Score returns a copy of the finding with CredibilityScore and Retained
// set. Scores are clamped to [-1, 1].
func (s *Scorer) Score(f types.Finding) types.Finding {
	score := s.cfg.TypeWeights[f.SourceType]
	score += s.domainAdjustment(f.Domain)
	score += contentQuality(f.Content)

	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}

	f.CredibilityScore = score
	f.Retained = score >= s.cfg.Threshold
	return f
}

// ScoreAll scores a batch of findings, preserving order.
func (s *Scorer) ScoreAll(findings []types.Finding) []types.Finding {
	out := make([]types.Finding, len(findings))
	for i, f := range findings {
		out[i] = s.Score(f)
	}
	return out
}

// domainAdjustment looks up the domain in the reputation table, walking up
// parent domains so blog.nature.com inherits the nature.com adjustment. TLD
// suffix rules cover institutional domains absent from the table.
func (s *Scorer) domainAdjustment(domain string) float64 {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return 0
	}

	parts := strings.Split(domain, ".")
	for i := 0; i < len(parts)-1; i++ {
		candidate := strings.Join(parts[i:], ".")
		if adj, ok := s.cfg.DomainAdjustments[candidate]; ok {
			return adj
		}
	}

	switch {
	case strings.HasSuffix(domain, ".edu"), strings.HasSuffix(domain, ".ac.uk"):
		return 0.35
	case strings.HasSuffix(domain, ".gov"):
		return 0.40
	case strings.HasSuffix(domain, ".org"):
		return 0.10
	}
	return 0
}

// contentQuality rewards longer, evidence-marked content and penalizes empty
// content. The marker bonus saturates so keyword stuffing cannot dominate
// the domain signal.
func contentQuality(content string) float64 {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return -0.3
	}

	var score float64
	switch {
	case len(trimmed) > 1000:
		score += 0.15
	case len(trimmed) > 500:
		score += 0.10
	}

	lower := strings.ToLower(trimmed)
	markers := 0
	for _, m := range qualityMarkers {
		if strings.Contains(lower, m) {
			markers++
		}
	}
	bonus := 0.03 * float64(markers)
	if bonus > 0.15 {
		bonus = 0.15
	}
	return score + bonus
}
