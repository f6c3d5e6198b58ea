// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pdiddy/deep-research/internal/credibility"
	"github.com/pdiddy/deep-research/internal/process"
	"github.com/pdiddy/deep-research/internal/source"
	"github.com/pdiddy/deep-research/pkg/types"
)

// send delivers an event to the sink with a timestamp. A nil sink discards.
func send(sink types.Sink, e types.Event) {
	if sink == nil {
		return
	}
	e.Timestamp = time.Now().UTC()
	sink(e)
}

// Orchestrator fans a batch of sub-queries out across all registered source
// adapters. Each adapter call gets its own timeout so one slow provider
// cannot stall the iteration, and each failure degrades to a warning rather
// than failing the run.
type Orchestrator struct {
	Adapters  []source.Adapter
	Processor *process.Processor
	Scorer    *credibility.Scorer
	Config    types.ResearchConfig

	// Log receives one warning line per adapter failure. Nil disables.
	Log io.Writer

	// acceptMu serializes the process/score/insert/emit section so
	// source_found events observe the same order findings were accepted in.
	acceptMu sync.Mutex
}

type adapterResult struct {
	adapter  string
	findings []types.Finding
	err      error
}

// Search runs every sub-query against every adapter. Sub-queries run
// concurrently up to MaxConcurrentQueries; within a sub-query all adapters
// run in parallel. Returns once every adapter call has finished or timed
// out.
func (o *Orchestrator) Search(ctx context.Context, st *State, queries []types.SubQuery, sink types.Sink) {
	maxConc := o.Config.MaxConcurrentQueries
	if maxConc <= 0 {
		maxConc = 3
	}
	sem := make(chan struct{}, maxConc)

	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func(q types.SubQuery) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			o.searchOne(ctx, st, q, sink)
		}(q)
	}
	wg.Wait()
}

// searchOne fans one sub-query out to all adapters and folds the results
// into the run state.
func (o *Orchestrator) searchOne(ctx context.Context, st *State, q types.SubQuery, sink types.Sink) {
	send(sink, types.Event{
		Type:    types.EventSubQuery,
		Message: q.Text,
		Data:    map[string]any{"iteration": q.OriginIteration},
	})

	timeout := o.Config.AdapterTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	results := make(chan adapterResult, len(o.Adapters))
	var wg sync.WaitGroup
	for _, ad := range o.Adapters {
		wg.Add(1)
		go func(ad source.Adapter) {
			defer wg.Done()
			actx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			findings, err := ad.Search(actx, q.Text, o.Config.Source)
			results <- adapterResult{adapter: ad.Name(), findings: findings, err: err}
		}(ad)
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			// A cancelled run surfaces once at the run level; the per-adapter
			// context errors it causes are not degradations worth reporting.
			if ctx.Err() == nil {
				o.warn(st, sink, r.adapter, q.Text, r.err)
			}
			continue
		}
		o.accept(st, q, r.findings, sink)
	}
}

// warn records an adapter failure as a non-fatal degradation.
func (o *Orchestrator) warn(st *State, sink types.Sink, adapter, query string, err error) {
	aerr := &AdapterError{Adapter: adapter, Query: query, Err: err}
	st.AddWarning(aerr.Error())
	if o.Log != nil {
		fmt.Fprintf(o.Log, "warning: %v\n", aerr)
	}
	send(sink, types.Event{
		Type:    types.EventError,
		Message: aerr.Error(),
		Data:    map[string]any{"adapter": adapter, "fatal": false},
	})
}

// accept processes, scores, and deduplicates a batch of findings. Duplicates
// by normalized URL are dropped silently; each accepted finding yields one
// source_found event.
func (o *Orchestrator) accept(st *State, q types.SubQuery, findings []types.Finding, sink types.Sink) {
	o.acceptMu.Lock()
	defer o.acceptMu.Unlock()

	for _, f := range findings {
		f.SubQuery = q.Text
		f = o.Processor.Process(f)
		f = o.Scorer.Score(f)
		if !st.Insert(f) {
			continue
		}
		send(sink, types.Event{
			Type:    types.EventSourceFound,
			Message: f.Title,
			Data: map[string]any{
				"url":               f.URL,
				"title":             f.Title,
				"domain":            f.Domain,
				"source_type":       string(f.SourceType),
				"credibility_score": f.CredibilityScore,
				"retained":          f.Retained,
				"sub_query":         q.Text,
			},
		})
	}
}
