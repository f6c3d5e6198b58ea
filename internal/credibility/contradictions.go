// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package credibility

import (
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// negationPairs lists opposing claim words. Two findings answering the same
// sub-query that use opposite members of a pair are flagged as potentially
// contradictory.
var negationPairs = [][2]string{
	{"increase", "decrease"},
	{"rise", "fall"},
	{"higher", "lower"},
	{"growth", "decline"},
	{"benefit", "harm"},
	{"support", "oppose"},
	{"effective", "ineffective"},
	{"safe", "dangerous"},
	{"proven", "unproven"},
	{"confirm", "deny"},
}

// Common words excluded when checking topical overlap between findings.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "to": true, "for": true,
	"is": true, "are": true, "was": true, "were": true, "that": true,
	"this": true, "with": true, "by": true, "at": true, "as": true,
	"it": true, "be": true, "from": true, "has": true, "have": true,
}

// DetectContradictions compares retained findings pairwise and reports pairs
// that answer the same sub-query with opposing claim words. The heuristic is
// advisory: flagged pairs surface in the report's conflict section for the
// reader to judge, they are never dropped.
func DetectContradictions(findings []types.Finding) []types.Contradiction {
	var out []types.Contradiction
	for i := 0; i < len(findings); i++ {
		for j := i + 1; j < len(findings); j++ {
			a, b := findings[i], findings[j]
			if !a.Retained || !b.Retained {
				continue
			}
			if a.SubQuery == "" || a.SubQuery != b.SubQuery {
				continue
			}

			signal := opposingSignal(a.Content, b.Content)
			if signal == "" {
				continue
			}
			if !shareKeyTerms(a.Content, b.Content) {
				continue
			}

			out = append(out, types.Contradiction{
				Source1: a.Title,
				Source2: b.Title,
				URL1:    a.URL,
				URL2:    b.URL,
				Signal:  signal,
			})
		}
	}
	return out
}

// opposingSignal returns a "word vs word" description when the two texts use
// opposite members of a negation pair, or "" when none applies.
func opposingSignal(a, b string) string {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range negationPairs {
		if containsWord(la, pair[0]) && containsWord(lb, pair[1]) {
			return pair[0] + " vs " + pair[1]
		}
		if containsWord(la, pair[1]) && containsWord(lb, pair[0]) {
			return pair[1] + " vs " + pair[0]
		}
	}
	return ""
}

// containsWord reports whether text contains w as a word prefix ("increases"
// matches "increase") without matching inside other words.
func containsWord(text, w string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], w)
		if i < 0 {
			return false
		}
		i += idx
		if i == 0 || !isLetter(text[i-1]) {
			return true
		}
		idx = i + len(w)
		if idx >= len(text) {
			return false
		}
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// shareKeyTerms reports whether the two texts overlap on at least two
// non-stopword terms of four or more characters. It filters out pairs that
// use opposing words about unrelated topics.
func shareKeyTerms(a, b string) bool {
	termsA := keyTerms(a)
	termsB := keyTerms(b)

	overlap := 0
	for t := range termsA {
		if termsB[t] {
			overlap++
			if overlap >= 2 {
				return true
			}
		}
	}
	return false
}

func keyTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) >= 4 && !stopWords[w] {
			terms[w] = true
		}
	}
	return terms
}
