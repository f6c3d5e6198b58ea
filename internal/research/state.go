// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research runs the iterative research loop: decompose, search,
// evaluate, repeat until complete or capped, then synthesize.
// Implements: prd005-research-loop (R1-R6); docs/ARCHITECTURE § Loop.
package research

import (
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pdiddy/deep-research/pkg/types"
)

// State accumulates everything a single research run learns. One State
// exists per run; all mutation goes through its mutex so adapter goroutines
// can insert concurrently. Findings are deduplicated by normalized URL with
// first-seen-wins semantics and discovery order is preserved.
type State struct {
	// RunID identifies this run in events and saved reports.
	RunID string

	// Query is the user's original question.
	Query string

	mu             sync.Mutex
	order          []string
	byURL          map[string]types.Finding
	seenQueries    map[string]bool
	warnings       []string
	contradictions []types.Contradiction

	// Iteration is the current zero-based iteration index.
	Iteration int
}

// NewState creates run state for a query.
func NewState(query string) *State {
	return &State{
		RunID:       uuid.NewString(),
		Query:       query,
		byURL:       make(map[string]types.Finding),
		seenQueries: make(map[string]bool),
	}
}

// NormalizeURL canonicalizes a URL for deduplication: lowercased, fragment
// dropped, trailing slash removed. Distinct query strings stay distinct.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	u.Fragment = ""
	s := strings.ToLower(u.String())
	return strings.TrimSuffix(s, "/")
}

// Insert adds a finding unless a finding with the same normalized URL is
// already present. Returns true when the finding was accepted. The first
// finding for a URL wins; later duplicates are discarded regardless of
// score.
func (s *State) Insert(f types.Finding) bool {
	key := NormalizeURL(f.URL)
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byURL[key]; dup {
		return false
	}
	s.byURL[key] = f
	s.order = append(s.order, key)
	return true
}

// Findings returns all findings in discovery order.
func (s *State) Findings() []types.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Finding, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byURL[key])
	}
	return out
}

// Retained returns the findings that met the credibility threshold, in
// discovery order.
func (s *State) Retained() []types.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Finding, 0, len(s.order))
	for _, key := range s.order {
		if f := s.byURL[key]; f.Retained {
			out = append(out, f)
		}
	}
	return out
}

// Len reports how many findings the run holds.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// MarkQuery records a sub-query as issued and reports whether it was new.
// Comparison is case-insensitive so the evaluator cannot re-issue a prior
// sub-query with different casing.
func (s *State) MarkQuery(text string) bool {
	key := strings.ToLower(strings.TrimSpace(text))
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenQueries[key] {
		return false
	}
	s.seenQueries[key] = true
	return true
}

// AddWarning records a non-fatal degradation for the final report.
func (s *State) AddWarning(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

// Warnings returns recorded degradations in order.
func (s *State) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// SetContradictions replaces the detected contradiction set.
func (s *State) SetContradictions(cs []types.Contradiction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contradictions = cs
}

// Contradictions returns the detected contradiction set.
func (s *State) Contradictions() []types.Contradiction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Contradiction(nil), s.contradictions...)
}
