// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "deep-research/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourceConfig holds settings shared by the source adapters.
type SourceConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxWebResults is the per-sub-query result cap for the web adapter.
	MaxWebResults int `json:"max_web_results" yaml:"max_web_results"`

	// MaxWikipediaResults is the per-sub-query cap for the encyclopedia adapter.
	MaxWikipediaResults int `json:"max_wikipedia_results" yaml:"max_wikipedia_results"`

	// MaxAcademicResults is the per-sub-query cap for each academic adapter.
	MaxAcademicResults int `json:"max_academic_results" yaml:"max_academic_results"`

	// FetchPageContent controls whether the web adapter downloads and converts
	// page bodies for its top results. Disable for faster, snippet-only runs.
	FetchPageContent bool `json:"fetch_page_content" yaml:"fetch_page_content"`

	// EnableWeb, EnableWikipedia, EnableArxiv, and EnableSemanticScholar
	// select which adapters a run registers.
	EnableWeb             bool `json:"enable_web" yaml:"enable_web"`
	EnableWikipedia       bool `json:"enable_wikipedia" yaml:"enable_wikipedia"`
	EnableArxiv           bool `json:"enable_arxiv" yaml:"enable_arxiv"`
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`
}

// CredibilityConfig holds the rule tables for the credibility scorer.
type CredibilityConfig struct {
	// Threshold is the minimum score for a finding to feed synthesis.
	// Findings below it stay in the run state with Retained=false.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// TypeWeights is the base score contribution per source type.
	TypeWeights map[SourceType]float64 `json:"type_weights" yaml:"type_weights"`

	// DomainAdjustments maps a domain (or parent domain) to an additive
	// reputation adjustment. Positive for high-trust, negative for low-trust.
	DomainAdjustments map[string]float64 `json:"domain_adjustments" yaml:"domain_adjustments"`
}

// AIConfig holds shared settings for the language-model capabilities.
type AIConfig struct {
	// Model is the model identifier (e.g. "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the model API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed model calls
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ResearchConfig groups everything the iteration controller needs. There are
// no hidden globals: one config object is passed in at construction and one
// run state exists per query, so concurrent runs for different queries are
// safe.
type ResearchConfig struct {
	// MaxIterations is the hard cap on research iterations (default 3). The
	// loop terminates at the cap regardless of the completeness check.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// AdapterTimeout bounds each individual adapter call (default 10s).
	AdapterTimeout time.Duration `json:"adapter_timeout" yaml:"adapter_timeout"`

	// MaxConcurrentQueries bounds how many sub-queries search at once within
	// one iteration (default 3).
	MaxConcurrentQueries int `json:"max_concurrent_queries" yaml:"max_concurrent_queries"`

	// MaxSubQueries caps the initial decomposition size (default 5).
	MaxSubQueries int `json:"max_sub_queries" yaml:"max_sub_queries"`

	// MaxContentLength bounds processed content per finding, in characters
	// (default 4000), to respect downstream token budgets.
	MaxContentLength int `json:"max_content_length" yaml:"max_content_length"`

	// CachePath is the SQLite adapter-cache file. Empty disables caching.
	CachePath string `json:"cache_path,omitempty" yaml:"cache_path,omitempty"`

	// CacheTTL is how long cached adapter results stay fresh (default 1h).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	Source      SourceConfig      `json:"source" yaml:"source"`
	Credibility CredibilityConfig `json:"credibility" yaml:"credibility"`
	AI          AIConfig          `json:"ai" yaml:"ai"`
}

// DefaultResearchConfig returns the stock configuration.
func DefaultResearchConfig() ResearchConfig {
	return ResearchConfig{
		MaxIterations:        3,
		AdapterTimeout:       10 * time.Second,
		MaxConcurrentQueries: 3,
		MaxSubQueries:        5,
		MaxContentLength:     4000,
		CacheTTL:             time.Hour,
		Source: SourceConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "deep-research/0.1 (research-bot)",
			},
			MaxWebResults:         10,
			MaxWikipediaResults:   3,
			MaxAcademicResults:    5,
			FetchPageContent:      true,
			EnableWeb:             true,
			EnableWikipedia:       true,
			EnableArxiv:           true,
			EnableSemanticScholar: true,
		},
		Credibility: DefaultCredibilityConfig(),
		AI: AIConfig{
			Model:      "gemini-2.0-flash",
			MaxRetries: 3,
		},
	}
}

// DefaultCredibilityConfig returns the stock scoring tables. Adjustments are
// additive on the [-1, 1] scale.
func DefaultCredibilityConfig() CredibilityConfig {
	return CredibilityConfig{
		Threshold: 0.0,
		TypeWeights: map[SourceType]float64{
			SourceAcademic:  0.60,
			SourceWikipedia: 0.40,
			SourceWeb:       0.00,
		},
		DomainAdjustments: map[string]float64{
			// Authoritative.
			"nature.com":              0.40,
			"science.org":             0.40,
			"arxiv.org":               0.35,
			"pubmed.ncbi.nlm.nih.gov": 0.40,
			"ieee.org":                0.35,
			"acm.org":                 0.35,
			"semanticscholar.org":     0.30,
			"who.int":                 0.40,
			"cdc.gov":                 0.35,
			"nih.gov":                 0.38,
			"wikipedia.org":           0.25,
			"britannica.com":          0.30,
			// Reputable news.
			"reuters.com":        0.30,
			"apnews.com":         0.30,
			"bbc.com":            0.28,
			"bbc.co.uk":          0.28,
			"nytimes.com":        0.26,
			"washingtonpost.com": 0.25,
			"theguardian.com":    0.24,
			"economist.com":      0.28,
			"wsj.com":            0.26,
			"ft.com":             0.26,
			"bloomberg.com":      0.25,
			"arstechnica.com":    0.20,
			"techcrunch.com":     0.16,
			"wired.com":          0.16,
			"theverge.com":       0.12,
			"mit.edu":            0.35,
			"stanford.edu":       0.35,
			"harvard.edu":        0.35,
			// User-generated and aggregator content.
			"medium.com":   -0.10,
			"substack.com": -0.05,
			"reddit.com":   -0.20,
			"quora.com":    -0.25,
		},
	}
}
