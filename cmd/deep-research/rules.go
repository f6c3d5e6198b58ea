// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/credibility"
	"github.com/pdiddy/deep-research/pkg/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the credibility scoring tables",
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stock scoring tables to a YAML rule file",
	Long: `Export seeds a project-specific rule file from the stock tables. Edit the
file and pass it to research --rules to tune domain reputations without a
rebuild.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if err := credibility.WriteRules(out, types.DefaultCredibilityConfig()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Rules written to %s\n", out)
		return nil
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective scoring tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := types.DefaultCredibilityConfig()
		if rulePath, _ := cmd.Flags().GetString("rules"); rulePath != "" {
			merged, err := credibility.LoadRules(rulePath, cfg)
			if err != nil {
				return err
			}
			cfg = merged
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "threshold\t%.2f\n", cfg.Threshold)
		for _, st := range []types.SourceType{types.SourceAcademic, types.SourceWikipedia, types.SourceWeb} {
			fmt.Fprintf(w, "type:%s\t%+.2f\n", st, cfg.TypeWeights[st])
		}

		domains := make([]string, 0, len(cfg.DomainAdjustments))
		for d := range cfg.DomainAdjustments {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		for _, d := range domains {
			fmt.Fprintf(w, "domain:%s\t%+.2f\n", d, cfg.DomainAdjustments[d])
		}
		return w.Flush()
	},
}

func init() {
	rulesExportCmd.Flags().String("output", "credibility-rules.yaml", "destination rule file")
	rulesShowCmd.Flags().String("rules", "", "rule file to merge over the stock tables")

	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rootCmd.AddCommand(rulesCmd)
}
