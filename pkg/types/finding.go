// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research engine.
// Implements: prd002-sources (Finding, SubQuery);
//
//	prd005-research-loop (Event, configs);
//	prd006-synthesis (Report, Contradiction).
package types

import "time"

// SourceType classifies where a finding came from.
type SourceType string

const (
	SourceWeb       SourceType = "web"
	SourceWikipedia SourceType = "wikipedia"
	SourceAcademic  SourceType = "academic"
)

// SubQuery is one narrowed question derived from the user's original query.
// Created by decomposition, consumed once by the orchestrator.
type SubQuery struct {
	// Text is the searchable question.
	Text string `json:"text" yaml:"text"`

	// OriginIteration is the research iteration that produced this sub-query
	// (0 for the initial decomposition).
	OriginIteration int `json:"origin_iteration" yaml:"origin_iteration"`
}

// Finding is one retrieved item from any source, after normalization and
// scoring. Findings are keyed by normalized URL within a research run.
type Finding struct {
	// URL is the source location as returned by the adapter.
	URL string `json:"url" yaml:"url"`

	// Title is the result title.
	Title string `json:"title" yaml:"title"`

	// Snippet is a short excerpt shown in progress output.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Content is the processed full text, bounded by MaxContentLength.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// SourceType identifies the adapter category that found this result.
	SourceType SourceType `json:"source_type" yaml:"source_type"`

	// Domain is the registrable host of the URL with any www. prefix removed.
	Domain string `json:"domain" yaml:"domain"`

	// SubQuery is the sub-query text that surfaced this finding.
	SubQuery string `json:"sub_query,omitempty" yaml:"sub_query,omitempty"`

	// PublishedAt is the publication date, when the source reports one.
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// CredibilityScore is a value in [-1, 1] combining source type, domain
	// reputation, and content-quality heuristics.
	CredibilityScore float64 `json:"credibility_score" yaml:"credibility_score"`

	// Retained reports whether the score met the configured threshold.
	// Findings below threshold stay in the run state for the audit trail but
	// are excluded from synthesis input.
	Retained bool `json:"retained" yaml:"retained"`
}
