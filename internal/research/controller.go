// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/deep-research/internal/credibility"
	"github.com/pdiddy/deep-research/internal/synthesis"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Decomposer breaks a research question into focused sub-queries. On
// gap-filling calls gaps holds the open questions from the last completeness
// check and the result refines them; on the initial call gaps is empty.
// Implemented by the language model client.
type Decomposer interface {
	Decompose(ctx context.Context, query string, gaps []string, max int) ([]string, error)
}

// Assessment is the completeness verdict for one iteration.
type Assessment struct {
	// Complete reports that the findings answer the question well enough.
	Complete bool

	// Gaps lists follow-up questions for the next iteration. Ignored when
	// Complete is true.
	Gaps []string
}

// Evaluator judges whether collected findings answer the original question.
// Implemented by the language model client.
type Evaluator interface {
	Evaluate(ctx context.Context, query string, findings []types.Finding, iteration int) (Assessment, error)
}

// Synthesizer produces the final report. Satisfied by synthesis.Synthesizer.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (types.Report, error)
}

// maxGapQueries caps how many follow-up sub-queries one evaluation may add.
const maxGapQueries = 3

// Controller drives a research run through its phases: decompose the query,
// search, evaluate completeness, loop or synthesize. The iteration count is
// hard-capped by MaxIterations regardless of what the evaluator says, and
// every language-model failure degrades to a deterministic path rather than
// failing the run.
type Controller struct {
	Config       types.ResearchConfig
	Decomposer   Decomposer
	Evaluator    Evaluator
	Orchestrator *Orchestrator
	Synthesizer  Synthesizer

	// Log receives one line per degradation. Nil disables.
	Log io.Writer
}

// Run executes one research run for the query. It returns ErrRunFailed only
// when no findings were collected at all; every other failure mode degrades
// and still yields a report. Cancelling the context stops searching and
// synthesizes from whatever was collected.
func (c *Controller) Run(ctx context.Context, query string, sink types.Sink) (types.Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return types.Report{}, fmt.Errorf("empty research query")
	}

	st := NewState(query)
	maxIters := c.Config.MaxIterations
	if maxIters <= 0 {
		maxIters = 3
	}

	queries := c.decompose(ctx, st, query, nil, sink)

	cancelled := false
	for {
		send(sink, types.Event{
			Type:    types.EventIteration,
			Message: fmt.Sprintf("iteration %d of %d", st.Iteration+1, maxIters),
			Data:    map[string]any{"iteration": st.Iteration, "max_iterations": maxIters},
		})
		send(sink, types.Event{
			Type:    types.EventStatus,
			Message: "searching sources",
			Data:    map[string]any{"phase": "searching", "sub_queries": len(queries)},
		})

		c.Orchestrator.Search(ctx, st, queries, sink)
		if ctx.Err() != nil {
			cancelled = true
			st.AddWarning("run cancelled during search")
			break
		}

		if st.Iteration+1 >= maxIters {
			break
		}

		send(sink, types.Event{
			Type:    types.EventStatus,
			Message: "evaluating completeness",
			Data:    map[string]any{"phase": "evaluating", "findings": st.Len()},
		})
		gaps := c.evaluate(ctx, st, query, sink)
		if ctx.Err() != nil {
			cancelled = true
			st.AddWarning("run cancelled during evaluation")
			break
		}
		if len(gaps) == 0 {
			break
		}

		// Each gap-filling iteration re-enters decomposition with the open
		// gaps; the decomposer turns them into the next sub-query batch.
		next := c.decompose(ctx, st, query, gaps, sink)
		if ctx.Err() != nil {
			cancelled = true
			st.AddWarning("run cancelled during decomposition")
			break
		}
		if len(next) == 0 {
			break
		}
		queries = next
		st.Iteration++
	}

	iterations := st.Iteration + 1
	if st.Len() == 0 {
		send(sink, types.Event{
			Type:    types.EventError,
			Message: ErrRunFailed.Error(),
			Data:    map[string]any{"fatal": true},
		})
		return types.Report{}, ErrRunFailed
	}

	st.SetContradictions(credibility.DetectContradictions(st.Retained()))

	send(sink, types.Event{
		Type:    types.EventSynthesis,
		Message: "synthesizing report",
		Data:    map[string]any{"sources": len(st.Retained()), "iterations": iterations},
	})

	report, err := c.Synthesizer.Synthesize(ctx, synthesis.Request{
		Query:          query,
		Findings:       st.Retained(),
		Contradictions: st.Contradictions(),
		Iterations:     iterations,
		Warnings:       st.Warnings(),
		Cancelled:      cancelled,
	})
	if err != nil {
		send(sink, types.Event{
			Type:    types.EventError,
			Message: fmt.Sprintf("synthesis failed: %v", err),
			Data:    map[string]any{"fatal": true},
		})
		return types.Report{}, fmt.Errorf("synthesizing report: %w", err)
	}
	if report.Degraded {
		c.degrade(st, sink, &DegradedError{Capability: "synthesis", Err: fmt.Errorf("generator unavailable, template used")})
	}

	send(sink, types.Event{
		Type:    types.EventReport,
		Message: "report ready",
		Data:    map[string]any{"markdown": report.Markdown},
	})
	send(sink, types.Event{
		Type:    types.EventComplete,
		Message: "research complete",
		Data: map[string]any{
			"run_id":     st.RunID,
			"iterations": iterations,
			"sources":    st.Len(),
			"retained":   len(st.Retained()),
			"degraded":   report.Degraded,
			"cancelled":  cancelled,
		},
	})
	return report, nil
}

// decompose produces a sub-query batch. The initial call (nil gaps) breaks
// the query into up to MaxSubQueries parts; gap-filling calls refine the open
// gaps into at most maxGapQueries follow-ups. A failed or empty decomposition
// degrades: to the original query on the initial call, to the literal gap
// texts on gap-filling calls. Sub-queries the run already issued are dropped;
// a gap batch that dedups to nothing ends the run.
func (c *Controller) decompose(ctx context.Context, st *State, query string, gaps []string, sink types.Sink) []types.SubQuery {
	send(sink, types.Event{
		Type:    types.EventStatus,
		Message: "decomposing query",
		Data:    map[string]any{"phase": "decomposing", "run_id": st.RunID, "gaps": len(gaps)},
	})

	maxSub := c.Config.MaxSubQueries
	if maxSub <= 0 {
		maxSub = 5
	}
	origin := 0
	if len(gaps) > 0 {
		maxSub = maxGapQueries
		origin = st.Iteration + 1
	}

	var texts []string
	err := fmt.Errorf("no decomposer configured")
	if c.Decomposer != nil {
		texts, err = c.Decomposer.Decompose(ctx, query, gaps, maxSub)
	}
	if err != nil || len(texts) == 0 {
		if err == nil {
			err = fmt.Errorf("no sub-queries produced")
		}
		c.degrade(st, sink, &DegradedError{Capability: "decomposition", Err: err})
		if len(gaps) > 0 {
			texts = gaps
		} else {
			texts = []string{query}
		}
	}
	if len(texts) > maxSub {
		texts = texts[:maxSub]
	}

	var queries []types.SubQuery
	for _, t := range texts {
		if st.MarkQuery(t) {
			queries = append(queries, types.SubQuery{Text: strings.TrimSpace(t), OriginIteration: origin})
		}
	}
	if len(queries) == 0 && len(gaps) == 0 {
		st.MarkQuery(query)
		queries = []types.SubQuery{{Text: query}}
	}
	return queries
}

// evaluate asks the evaluator whether the run is complete and returns the
// open gaps if not. An evaluator failure degrades to "complete" so the run
// never spins on a broken capability.
func (c *Controller) evaluate(ctx context.Context, st *State, query string, sink types.Sink) []string {
	if c.Evaluator == nil {
		// Without an evaluator one pass is all the run can judge.
		return nil
	}
	assessment, err := c.Evaluator.Evaluate(ctx, query, st.Retained(), st.Iteration)
	if err != nil {
		c.degrade(st, sink, &DegradedError{Capability: "completeness evaluation", Err: err})
		return nil
	}
	if assessment.Complete {
		return nil
	}

	gaps := assessment.Gaps
	if len(gaps) > maxGapQueries {
		gaps = gaps[:maxGapQueries]
	}
	return gaps
}

// degrade records a capability fallback as warning, log line, and non-fatal
// error event.
func (c *Controller) degrade(st *State, sink types.Sink, derr *DegradedError) {
	st.AddWarning(derr.Error())
	if c.Log != nil {
		fmt.Fprintf(c.Log, "warning: %v\n", derr)
	}
	send(sink, types.Event{
		Type:    types.EventError,
		Message: derr.Error(),
		Data:    map[string]any{"capability": derr.Capability, "fatal": false},
	})
}
