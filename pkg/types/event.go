// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EventType identifies a progress event emitted during a research run.
type EventType string

const (
	// EventStatus marks a phase transition.
	EventStatus EventType = "status"
	// EventSubQuery is emitted for each sub-query issued.
	EventSubQuery EventType = "sub_query"
	// EventIteration marks an iteration boundary.
	EventIteration EventType = "iteration"
	// EventSourceFound is emitted for each accepted, post-dedup finding.
	EventSourceFound EventType = "source_found"
	// EventSynthesis marks entry into report synthesis.
	EventSynthesis EventType = "synthesis"
	// EventComplete marks the end of a successful run.
	EventComplete EventType = "complete"
	// EventReport carries the final report markdown.
	EventReport EventType = "report"
	// EventError carries a non-fatal warning or a fatal failure.
	EventError EventType = "error"
)

// Event is one progress observation handed to the transport layer. Events
// for a run are emitted in causal order; no ordering is guaranteed across
// concurrently searched sub-queries.
type Event struct {
	Type      EventType      `json:"event_type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives progress events. Implementations must be fast or hand off to
// their own queue: the engine calls the sink synchronously. A nil Sink is
// valid and discards events.
type Sink func(Event)
