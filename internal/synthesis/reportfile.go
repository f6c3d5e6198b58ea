// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-research/pkg/types"
)

// reportMeta is the YAML sidecar saved next to the markdown report: the
// citation map, run counters, and degradations, for tooling that consumes
// reports programmatically.
type reportMeta struct {
	Query          string                `yaml:"query"`
	GeneratedAt    time.Time             `yaml:"generated_at"`
	Iterations     int                   `yaml:"iterations"`
	Degraded       bool                  `yaml:"degraded,omitempty"`
	Cancelled      bool                  `yaml:"cancelled,omitempty"`
	Citations      map[int]types.Finding `yaml:"citations"`
	Contradictions []types.Contradiction `yaml:"contradictions,omitempty"`
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]+`)

// SaveReport writes the report markdown and its YAML sidecar into dir with a
// timestamped filename derived from the query. Returns the markdown path.
func SaveReport(dir string, report types.Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	stem := slug(report.Query)
	stamp := time.Now().Format("20060102-150405")
	base := fmt.Sprintf("%s-%s", stamp, stem)

	mdPath := filepath.Join(dir, base+".md")
	if err := os.WriteFile(mdPath, []byte(report.Markdown), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	meta := reportMeta{
		Query:          report.Query,
		GeneratedAt:    time.Now(),
		Iterations:     report.Iterations,
		Degraded:       report.Degraded,
		Cancelled:      report.Cancelled,
		Citations:      report.Citations,
		Contradictions: report.Contradictions,
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return mdPath, fmt.Errorf("marshaling report metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, base+".yaml"), data, 0o644); err != nil {
		return mdPath, fmt.Errorf("writing report metadata: %w", err)
	}
	return mdPath, nil
}

// slug reduces a query to a short filesystem-safe stem.
func slug(query string) string {
	s := unsafeFilename.ReplaceAllString(strings.ToLower(query), "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = s[:60]
		s = strings.Trim(s, "-")
	}
	if s == "" {
		s = "report"
	}
	return s
}
