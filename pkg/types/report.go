// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Contradiction flags a pair of findings for the same sub-query that assert
// opposing claims. Advisory: the synthesizer surfaces these, nothing is
// dropped.
type Contradiction struct {
	// Source1 and Source2 are the titles of the conflicting findings.
	Source1 string `json:"source1" yaml:"source1"`
	Source2 string `json:"source2" yaml:"source2"`

	// URL1 and URL2 identify the conflicting findings by normalized URL.
	URL1 string `json:"url1" yaml:"url1"`
	URL2 string `json:"url2" yaml:"url2"`

	// Signal names the opposing word pair that triggered the flag
	// (e.g. "increase vs decrease").
	Signal string `json:"signal" yaml:"signal"`
}

// Report is the final output of a research run. Created once by the
// synthesizer; immutable thereafter.
type Report struct {
	// Query is the original research question.
	Query string `json:"query" yaml:"query"`

	// Markdown is the full report body.
	Markdown string `json:"markdown" yaml:"markdown"`

	// Citations maps each citation index used in the report to its finding.
	// Every retained finding appears exactly once.
	Citations map[int]Finding `json:"citations" yaml:"citations"`

	// Iterations is the number of research iterations performed.
	Iterations int `json:"iterations" yaml:"iterations"`

	// Contradictions lists the flagged pairs surfaced in the report.
	Contradictions []Contradiction `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`

	// Degraded reports that the generation capability failed and the
	// deterministic template was used instead.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`

	// Cancelled reports that the run was cancelled before completing and the
	// report covers only the findings collected up to that point.
	Cancelled bool `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}
