// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package credibility

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-research/pkg/types"
)

// RuleFile is the on-disk representation of the scoring rule tables. Teams
// tune domain reputations per project; a rule file overrides the stock
// tables without a rebuild.
type RuleFile struct {
	Threshold         *float64                     `yaml:"threshold,omitempty"`
	TypeWeights       map[types.SourceType]float64 `yaml:"type_weights,omitempty"`
	DomainAdjustments map[string]float64           `yaml:"domain_adjustments,omitempty"`
}

// LoadRules reads a YAML rule file and merges it over base. Absent sections
// keep the base values; present sections replace them wholesale.
func LoadRules(path string, base types.CredibilityConfig) (types.CredibilityConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading rule file: %w", err)
	}
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return base, fmt.Errorf("parsing rule file: %w", err)
	}

	out := base
	if rf.Threshold != nil {
		out.Threshold = *rf.Threshold
	}
	if rf.TypeWeights != nil {
		out.TypeWeights = rf.TypeWeights
	}
	if rf.DomainAdjustments != nil {
		out.DomainAdjustments = rf.DomainAdjustments
	}
	return out, nil
}

// WriteRules saves the scoring tables to a YAML file, typically to seed a
// project-specific rule file from the stock tables.
func WriteRules(path string, cfg types.CredibilityConfig) error {
	rf := RuleFile{
		Threshold:         &cfg.Threshold,
		TypeWeights:       cfg.TypeWeights,
		DomainAdjustments: cfg.DomainAdjustments,
	}
	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling rule file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
