// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/deep-research/internal/credibility"
	"github.com/pdiddy/deep-research/internal/process"
	"github.com/pdiddy/deep-research/internal/source"
	"github.com/pdiddy/deep-research/internal/synthesis"
	"github.com/pdiddy/deep-research/pkg/types"
)

// stubAdapter implements source.Adapter with a caller-supplied search func.
type stubAdapter struct {
	name string
	typ  types.SourceType
	fn   func(ctx context.Context, query string) ([]types.Finding, error)
}

func (a *stubAdapter) Name() string           { return a.name }
func (a *stubAdapter) Type() types.SourceType { return a.typ }
func (a *stubAdapter) Search(ctx context.Context, query string, _ types.SourceConfig) ([]types.Finding, error) {
	return a.fn(ctx, query)
}

// okAdapter returns one unique credible finding per sub-query.
func okAdapter(name string) *stubAdapter {
	var n int
	var mu sync.Mutex
	return &stubAdapter{
		name: name,
		typ:  types.SourceAcademic,
		fn: func(_ context.Context, query string) ([]types.Finding, error) {
			mu.Lock()
			n++
			id := n
			mu.Unlock()
			return []types.Finding{{
				URL:        fmt.Sprintf("https://%s.example/%d", name, id),
				Title:      fmt.Sprintf("%s result %d", name, id),
				Content:    "Published research data with strong evidence for " + query + ".",
				SourceType: types.SourceAcademic,
			}}, nil
		},
	}
}

type stubDecomposer struct {
	mu    sync.Mutex
	calls int
	subs  []string
	err   error
	fn    func(query string, gaps []string) ([]string, error)
}

func (d *stubDecomposer) Decompose(_ context.Context, query string, gaps []string, _ int) ([]string, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.fn != nil {
		return d.fn(query, gaps)
	}
	if d.err != nil {
		return nil, d.err
	}
	if d.subs == nil {
		if len(gaps) > 0 {
			return gaps, nil
		}
		return []string{query + " background", query + " evidence"}, nil
	}
	return d.subs, nil
}

func (d *stubDecomposer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type stubEvaluator struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (Assessment, error)
}

func (e *stubEvaluator) Evaluate(_ context.Context, _ string, _ []types.Finding, _ int) (Assessment, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()
	if e.fn == nil {
		return Assessment{Complete: true}, nil
	}
	return e.fn(call)
}

func (e *stubEvaluator) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type stubGenerator struct {
	out string
	err error
}

func (g *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	return g.out, g.err
}

// eventCollector is a thread-safe sink. Adapter goroutines emit
// concurrently, so collection must lock.
type eventCollector struct {
	mu     sync.Mutex
	events []types.Event
}

func (c *eventCollector) sink() types.Sink {
	return func(e types.Event) {
		c.mu.Lock()
		c.events = append(c.events, e)
		c.mu.Unlock()
	}
}

func (c *eventCollector) ofType(t types.EventType) []types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newController(adapters []source.Adapter, dec Decomposer, ev Evaluator, gen synthesis.Generator) *Controller {
	cfg := types.DefaultResearchConfig()
	cfg.AdapterTimeout = 2 * time.Second
	return &Controller{
		Config:     cfg,
		Decomposer: dec,
		Evaluator:  ev,
		Orchestrator: &Orchestrator{
			Adapters:  adapters,
			Processor: process.New(cfg.MaxContentLength),
			Scorer:    credibility.NewScorer(cfg.Credibility),
			Config:    cfg,
		},
		Synthesizer: &synthesis.Synthesizer{Generator: gen},
	}
}

func TestRunCompletesInOneIterationWhenNoGaps(t *testing.T) {
	ev := &stubEvaluator{}
	c := newController(
		[]source.Adapter{okAdapter("alpha")},
		&stubDecomposer{}, ev,
		&stubGenerator{out: "Findings show progress [1]."},
	)
	var events eventCollector

	report, err := c.Run(context.Background(), "test question", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", report.Iterations)
	}
	if ev.callCount() != 1 {
		t.Errorf("evaluator called %d times, want 1", ev.callCount())
	}
	if len(events.ofType(types.EventComplete)) != 1 {
		t.Error("missing complete event")
	}
	if len(events.ofType(types.EventReport)) != 1 {
		t.Error("missing report event")
	}
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	var gapN int
	ev := &stubEvaluator{fn: func(call int) (Assessment, error) {
		gapN++
		return Assessment{Gaps: []string{fmt.Sprintf("gap question %d", gapN)}}, nil
	}}
	c := newController(
		[]source.Adapter{okAdapter("alpha")},
		&stubDecomposer{}, ev, nil,
	)
	var events eventCollector

	report, err := c.Run(context.Background(), "test question", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3 (hard cap)", report.Iterations)
	}
	// The final iteration is never evaluated; it goes straight to synthesis.
	if ev.callCount() != 2 {
		t.Errorf("evaluator called %d times, want 2", ev.callCount())
	}
	if got := len(events.ofType(types.EventIteration)); got != 3 {
		t.Errorf("got %d iteration events, want 3", got)
	}
}

func TestRunDecomposerRefinesGapsEachIteration(t *testing.T) {
	var gapN int
	ev := &stubEvaluator{fn: func(int) (Assessment, error) {
		gapN++
		return Assessment{Gaps: []string{fmt.Sprintf("gap question %d", gapN)}}, nil
	}}
	dec := &stubDecomposer{fn: func(query string, gaps []string) ([]string, error) {
		if len(gaps) == 0 {
			return []string{query + " background"}, nil
		}
		out := make([]string, len(gaps))
		for i, g := range gaps {
			out[i] = "refined " + g
		}
		return out, nil
	}}
	c := newController([]source.Adapter{okAdapter("alpha")}, dec, ev, nil)
	var events eventCollector

	report, err := c.Run(context.Background(), "test question", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", report.Iterations)
	}
	// One initial decomposition plus one per gap-filling iteration.
	if dec.callCount() != 3 {
		t.Errorf("decomposer called %d times, want 3", dec.callCount())
	}

	// Gap iterations search the decomposer's refinements, not raw gap texts.
	var refined, raw int
	for _, e := range events.ofType(types.EventSubQuery) {
		switch {
		case strings.HasPrefix(e.Message, "refined gap question"):
			refined++
		case strings.HasPrefix(e.Message, "gap question"):
			raw++
		}
	}
	if refined != 2 {
		t.Errorf("got %d refined gap sub-queries, want 2", refined)
	}
	if raw != 0 {
		t.Errorf("got %d raw gap texts searched, want 0", raw)
	}
}

func TestRunGapDecompositionFallsBackToGapTexts(t *testing.T) {
	var gapN int
	ev := &stubEvaluator{fn: func(int) (Assessment, error) {
		gapN++
		return Assessment{Gaps: []string{fmt.Sprintf("gap question %d", gapN)}}, nil
	}}
	dec := &stubDecomposer{fn: func(query string, gaps []string) ([]string, error) {
		if len(gaps) == 0 {
			return []string{query + " background"}, nil
		}
		return nil, errors.New("model unavailable")
	}}
	c := newController([]source.Adapter{okAdapter("alpha")}, dec, ev, nil)
	var events eventCollector

	report, err := c.Run(context.Background(), "test question", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", report.Iterations)
	}

	// The literal gap texts are searched when refinement fails.
	var raw int
	for _, e := range events.ofType(types.EventSubQuery) {
		if strings.HasPrefix(e.Message, "gap question") {
			raw++
		}
	}
	if raw != 2 {
		t.Errorf("got %d gap-text sub-queries, want 2", raw)
	}
}

func TestRunDecompositionFallsBackToOriginalQuery(t *testing.T) {
	c := newController(
		[]source.Adapter{okAdapter("alpha")},
		&stubDecomposer{err: errors.New("model unavailable")},
		&stubEvaluator{}, nil,
	)
	var events eventCollector

	report, err := c.Run(context.Background(), "what drives tides", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	subs := events.ofType(types.EventSubQuery)
	if len(subs) != 1 || subs[0].Message != "what drives tides" {
		t.Errorf("sub_query events = %+v, want the original query verbatim", subs)
	}

	if report.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", report.Iterations)
	}

	found := false
	for _, e := range events.ofType(types.EventError) {
		if strings.Contains(e.Message, "decomposition degraded") {
			if fatal, _ := e.Data["fatal"].(bool); fatal {
				t.Error("degradation marked fatal")
			}
			found = true
		}
	}
	if !found {
		t.Error("missing decomposition degradation event")
	}
}

func TestRunAdapterFailureIsIsolated(t *testing.T) {
	broken := &stubAdapter{
		name: "broken", typ: types.SourceWeb,
		fn: func(_ context.Context, _ string) ([]types.Finding, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := newController(
		[]source.Adapter{broken, okAdapter("alpha")},
		&stubDecomposer{subs: []string{"only sub-query"}},
		&stubEvaluator{}, nil,
	)
	var events eventCollector

	report, err := c.Run(context.Background(), "q", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Citations) == 0 {
		t.Error("working adapter contributed no citations")
	}

	var sawAdapterError bool
	for _, e := range events.ofType(types.EventError) {
		if e.Data["adapter"] == "broken" {
			sawAdapterError = true
			if fatal, _ := e.Data["fatal"].(bool); fatal {
				t.Error("adapter failure marked fatal")
			}
		}
	}
	if !sawAdapterError {
		t.Error("missing adapter failure event")
	}
}

func TestRunSlowAdapterTimesOut(t *testing.T) {
	slow := &stubAdapter{
		name: "slow", typ: types.SourceWeb,
		fn: func(ctx context.Context, _ string) ([]types.Finding, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return nil, nil
			}
		},
	}
	c := newController(
		[]source.Adapter{slow, okAdapter("alpha")},
		&stubDecomposer{subs: []string{"only sub-query"}},
		&stubEvaluator{}, nil,
	)
	c.Config.AdapterTimeout = 50 * time.Millisecond
	c.Orchestrator.Config.AdapterTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := c.Run(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("run took %v; slow adapter was not isolated", elapsed)
	}
}

func TestRunDeduplicatesAcrossAdapters(t *testing.T) {
	mk := func(name string) *stubAdapter {
		return &stubAdapter{
			name: name, typ: types.SourceWeb,
			fn: func(_ context.Context, _ string) ([]types.Finding, error) {
				return []types.Finding{{
					URL:     "https://Shared.example/Article/",
					Title:   name + " copy",
					Content: "Shared research data and evidence from a study.",
				}}, nil
			},
		}
	}
	c := newController(
		[]source.Adapter{mk("one"), mk("two")},
		&stubDecomposer{subs: []string{"only sub-query"}},
		&stubEvaluator{}, nil,
	)
	var events eventCollector

	report, err := c.Run(context.Background(), "q", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Citations) != 1 {
		t.Errorf("got %d citations, want 1 after dedup", len(report.Citations))
	}
	if got := len(events.ofType(types.EventSourceFound)); got != 1 {
		t.Errorf("got %d source_found events, want 1", got)
	}
}

func TestRunSynthesisFallsBackToTemplate(t *testing.T) {
	c := newController(
		[]source.Adapter{okAdapter("alpha")},
		&stubDecomposer{}, &stubEvaluator{},
		&stubGenerator{err: errors.New("model quota exhausted")},
	)

	report, err := c.Run(context.Background(), "test question", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Degraded {
		t.Error("report not marked degraded")
	}
	if !strings.Contains(report.Markdown, "# Research Report: test question") {
		t.Errorf("fallback template missing header:\n%s", report.Markdown)
	}
	if !strings.Contains(report.Markdown, "## Sources") {
		t.Error("fallback template missing source list")
	}
}

func TestRunCancellationYieldsPartialReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// The adapter cancels the run after delivering its first batch.
	var once sync.Once
	partial := &stubAdapter{
		name: "partial", typ: types.SourceAcademic,
		fn: func(_ context.Context, _ string) ([]types.Finding, error) {
			defer once.Do(cancel)
			return []types.Finding{{
				URL:     "https://partial.example/1",
				Title:   "early finding",
				Content: "Research evidence collected before cancellation.",
			}}, nil
		},
	}
	ev := &stubEvaluator{fn: func(int) (Assessment, error) {
		return Assessment{Gaps: []string{"never searched"}}, nil
	}}
	c := newController([]source.Adapter{partial}, &stubDecomposer{subs: []string{"s1"}}, ev, nil)

	report, err := c.Run(ctx, "q", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Cancelled {
		t.Error("report not marked cancelled")
	}
	if !strings.Contains(report.Markdown, "cancelled") {
		t.Error("report missing cancellation notice")
	}
	if len(report.Citations) != 1 {
		t.Errorf("got %d citations, want the one pre-cancellation finding", len(report.Citations))
	}
	if ev.callCount() != 0 {
		t.Error("evaluator ran after cancellation")
	}
}

func TestRunCancellationSuppressesAdapterWarnings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	first := &stubAdapter{
		name: "first", typ: types.SourceAcademic,
		fn: func(_ context.Context, _ string) ([]types.Finding, error) {
			defer once.Do(cancel)
			return []types.Finding{{
				URL:     "https://first.example/1",
				Title:   "early finding",
				Content: "Research evidence collected before cancellation.",
			}}, nil
		},
	}
	// This adapter only ever fails with the cancellation error.
	blocked := &stubAdapter{
		name: "blocked", typ: types.SourceWeb,
		fn: func(ctx context.Context, _ string) ([]types.Finding, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := newController(
		[]source.Adapter{first, blocked},
		&stubDecomposer{subs: []string{"s1"}},
		&stubEvaluator{}, nil,
	)
	var events eventCollector

	report, err := c.Run(ctx, "q", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Cancelled {
		t.Error("report not marked cancelled")
	}

	for _, e := range events.ofType(types.EventError) {
		if e.Data["adapter"] != nil {
			t.Errorf("adapter warning leaked through cancellation: %s", e.Message)
		}
	}
	if strings.Contains(report.Markdown, "context canceled") {
		t.Errorf("cancellation noise in report:\n%s", report.Markdown)
	}
	if !strings.Contains(report.Markdown, "run cancelled during search") {
		t.Error("report missing the run-level cancellation note")
	}
}

func TestRunFailsWhenNoFindings(t *testing.T) {
	dead := &stubAdapter{
		name: "dead", typ: types.SourceWeb,
		fn: func(_ context.Context, _ string) ([]types.Finding, error) {
			return nil, errors.New("unreachable")
		},
	}
	c := newController([]source.Adapter{dead}, &stubDecomposer{}, &stubEvaluator{}, nil)
	var events eventCollector

	_, err := c.Run(context.Background(), "q", events.sink())
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("err = %v, want ErrRunFailed", err)
	}

	var sawFatal bool
	for _, e := range events.ofType(types.EventError) {
		if fatal, _ := e.Data["fatal"].(bool); fatal {
			sawFatal = true
		}
	}
	if !sawFatal {
		t.Error("missing fatal error event")
	}
}

func TestRunRepeatedGapsTerminate(t *testing.T) {
	// The evaluator keeps proposing a gap the run has already searched.
	ev := &stubEvaluator{fn: func(int) (Assessment, error) {
		return Assessment{Gaps: []string{"only sub-query"}}, nil
	}}
	c := newController(
		[]source.Adapter{okAdapter("alpha")},
		&stubDecomposer{subs: []string{"only sub-query"}}, ev, nil,
	)

	report, err := c.Run(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1 (repeat gap adds nothing)", report.Iterations)
	}
}

func TestRunEvaluatorFailureCompletesRun(t *testing.T) {
	ev := &stubEvaluator{fn: func(int) (Assessment, error) {
		return Assessment{}, errors.New("model unavailable")
	}}
	c := newController([]source.Adapter{okAdapter("alpha")}, &stubDecomposer{}, ev, nil)
	var events eventCollector

	report, err := c.Run(context.Background(), "q", events.sink())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", report.Iterations)
	}

	var sawDegradation bool
	for _, e := range events.ofType(types.EventError) {
		if strings.Contains(e.Message, "completeness evaluation degraded") {
			sawDegradation = true
		}
	}
	if !sawDegradation {
		t.Error("missing evaluation degradation event")
	}
}

func TestRunEmptyQueryRejected(t *testing.T) {
	c := newController([]source.Adapter{okAdapter("alpha")}, &stubDecomposer{}, &stubEvaluator{}, nil)
	if _, err := c.Run(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for empty query")
	}
}
