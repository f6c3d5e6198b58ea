// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/deep-research/internal/cache"
	"github.com/pdiddy/deep-research/internal/credibility"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/process"
	"github.com/pdiddy/deep-research/internal/research"
	"github.com/pdiddy/deep-research/internal/source"
	"github.com/pdiddy/deep-research/internal/synthesis"
	"github.com/pdiddy/deep-research/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research \"question\"",
	Short: "Run an iterative research loop and produce a cited report",
	Long: `Research decomposes the question into sub-queries, searches all enabled
sources concurrently, scores every result for credibility, and iterates until
the findings answer the question or the iteration cap is reached. The final
report is printed to stdout and saved under the reports directory.

Interrupting with Ctrl-C stops searching and synthesizes a report from
whatever was collected.`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().Int("max-iterations", 3, "hard cap on research iterations")
	researchCmd.Flags().Duration("adapter-timeout", 10*time.Second, "timeout per source adapter call")
	researchCmd.Flags().Int("max-concurrency", 3, "sub-queries searched in parallel")
	researchCmd.Flags().Float64("threshold", 0.0, "minimum credibility score for a source to feed the report")
	researchCmd.Flags().String("rules", "", "YAML credibility rule file overriding the stock tables")
	researchCmd.Flags().String("model", "", "language model (default gemini-2.0-flash)")
	researchCmd.Flags().String("cache", "", "SQLite file for caching adapter results (disabled when empty)")
	researchCmd.Flags().String("output", "reports", "directory for saved reports")
	researchCmd.Flags().Bool("no-save", false, "print the report without saving it")
	researchCmd.Flags().Bool("no-fetch-content", false, "skip downloading web result pages (snippets only)")
	researchCmd.Flags().Bool("json-events", false, "emit progress events as JSON lines on stdout")
	researchCmd.Flags().StringSlice("disable", nil, "sources to disable (web, wikipedia, arxiv, semantic_scholar)")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *cache.Store
	if cfg.CachePath != "" {
		store, err = cache.Open(cfg.CachePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	adapters := buildAdapters(cfg, store)
	if len(adapters) == 0 {
		return fmt.Errorf("all sources disabled")
	}

	var client *llm.Client
	if cfg.AI.APIKey != "" {
		client, err = llm.New(ctx, cfg.AI)
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintln(os.Stderr, "warning: no google-api-key configured; running without model capabilities")
	}

	controller := &research.Controller{
		Config: cfg,
		Orchestrator: &research.Orchestrator{
			Adapters:  adapters,
			Processor: process.New(cfg.MaxContentLength),
			Scorer:    credibility.NewScorer(cfg.Credibility),
			Config:    cfg,
			Log:       os.Stderr,
		},
		Log: os.Stderr,
	}
	synth := &synthesis.Synthesizer{}
	if client != nil {
		controller.Decomposer = client
		controller.Evaluator = client
		synth.Generator = client
	}
	controller.Synthesizer = synth

	jsonEvents, _ := cmd.Flags().GetBool("json-events")
	report, err := controller.Run(ctx, query, buildSink(jsonEvents))
	if err != nil {
		return err
	}

	if !jsonEvents {
		fmt.Println(report.Markdown)
	}

	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
		outDir, _ := cmd.Flags().GetString("output")
		path, err := synthesis.SaveReport(outDir, report)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Report saved to %s\n", path)
	}
	return nil
}

// buildConfig merges defaults, the viper config file, secrets, and flags.
func buildConfig(cmd *cobra.Command) (types.ResearchConfig, error) {
	cfg := types.DefaultResearchConfig()

	if viper.IsSet("max_iterations") {
		cfg.MaxIterations = viper.GetInt("max_iterations")
	}
	if viper.IsSet("model") {
		cfg.AI.Model = viper.GetString("model")
	}
	if viper.IsSet("cache_path") {
		cfg.CachePath = viper.GetString("cache_path")
	}
	if viper.IsSet("user_agent") {
		cfg.Source.UserAgent = viper.GetString("user_agent")
	}

	flags := cmd.Flags()
	if flags.Changed("max-iterations") {
		cfg.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Changed("adapter-timeout") {
		cfg.AdapterTimeout, _ = flags.GetDuration("adapter-timeout")
	}
	if flags.Changed("max-concurrency") {
		cfg.MaxConcurrentQueries, _ = flags.GetInt("max-concurrency")
	}
	if flags.Changed("threshold") {
		cfg.Credibility.Threshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("model") {
		cfg.AI.Model, _ = flags.GetString("model")
	}
	if flags.Changed("cache") {
		cfg.CachePath, _ = flags.GetString("cache")
	}
	if noFetch, _ := flags.GetBool("no-fetch-content"); noFetch {
		cfg.Source.FetchPageContent = false
	}

	if rulePath, _ := flags.GetString("rules"); rulePath != "" {
		merged, err := credibility.LoadRules(rulePath, cfg.Credibility)
		if err != nil {
			return cfg, err
		}
		cfg.Credibility = merged
	}

	disabled, _ := flags.GetStringSlice("disable")
	for _, d := range disabled {
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "web":
			cfg.Source.EnableWeb = false
		case "wikipedia":
			cfg.Source.EnableWikipedia = false
		case "arxiv":
			cfg.Source.EnableArxiv = false
		case "semantic_scholar", "semantic-scholar":
			cfg.Source.EnableSemanticScholar = false
		default:
			return cfg, fmt.Errorf("unknown source %q", d)
		}
	}

	cfg.AI.APIKey = secretDefault("google-api-key", viper.GetString("google_api_key"))
	cfg.Source.SemanticScholarAPIKey = secretDefault("semantic-scholar-api-key", viper.GetString("semantic_scholar_api_key"))
	return cfg, nil
}

// buildAdapters registers the enabled source adapters, each wrapped with the
// result cache when one is configured.
func buildAdapters(cfg types.ResearchConfig, store *cache.Store) []source.Adapter {
	client := &http.Client{Timeout: cfg.Source.Timeout}

	var adapters []source.Adapter
	if cfg.Source.EnableWeb {
		adapters = append(adapters, &source.WebAdapter{Client: client})
	}
	if cfg.Source.EnableWikipedia {
		adapters = append(adapters, &source.WikipediaAdapter{Client: client})
	}
	if cfg.Source.EnableArxiv {
		adapters = append(adapters, &source.ArxivAdapter{Client: client})
	}
	if cfg.Source.EnableSemanticScholar {
		adapters = append(adapters, &source.SemanticScholarAdapter{
			Client: client,
			APIKey: cfg.Source.SemanticScholarAPIKey,
		})
	}

	for i, ad := range adapters {
		adapters[i] = cache.Wrap(ad, store, cfg.CacheTTL)
	}
	return adapters
}

// buildSink returns the progress sink: JSON lines on stdout, or short
// human-readable lines on stderr. Adapter goroutines emit concurrently, so
// the sink serializes its writes.
func buildSink(jsonEvents bool) types.Sink {
	var mu sync.Mutex
	if jsonEvents {
		enc := json.NewEncoder(os.Stdout)
		return func(e types.Event) {
			mu.Lock()
			defer mu.Unlock()
			enc.Encode(e)
		}
	}
	return func(e types.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case types.EventSubQuery:
			fmt.Fprintf(os.Stderr, "  -> %s\n", e.Message)
		case types.EventSourceFound:
			fmt.Fprintf(os.Stderr, "     + [%.2f] %s\n", e.Data["credibility_score"], e.Message)
		case types.EventError:
			fmt.Fprintf(os.Stderr, "  !  %s\n", e.Message)
		case types.EventReport:
			// The report body is printed separately.
		default:
			fmt.Fprintf(os.Stderr, "%s\n", e.Message)
		}
	}
}
