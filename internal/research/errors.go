// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"errors"
	"fmt"
)

// ErrRunFailed is returned when a run collects no findings at all and no
// report can be produced.
var ErrRunFailed = errors.New("research run failed: no findings from any source")

// AdapterError records one source adapter failing for one sub-query. These
// are degradations, not run failures: the run continues with the remaining
// adapters and the error surfaces as a warning.
type AdapterError struct {
	Adapter string
	Query   string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s unavailable for %q: %v", e.Adapter, e.Query, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// DegradedError records a language-model capability falling back to its
// deterministic path (identity decomposition, assume-complete evaluation, or
// template synthesis).
type DegradedError struct {
	Capability string
	Err        error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("%s degraded: %v", e.Capability, e.Err)
}

func (e *DegradedError) Unwrap() error { return e.Err }
