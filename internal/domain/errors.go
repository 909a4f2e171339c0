package domain

import (
	"fmt"
	"strings"
	"time"
)

// SchemaError reports raw input missing required structure, e.g. a feed
// without the mandatory columns. It aborts the run and is never retried.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("raw input missing required columns: %s", strings.Join(e.Missing, ", "))
}

// TransientStoreError wraps a store connection or transaction failure that
// is worth retrying within the stage retry budget.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// ReadinessTimeoutError reports that the readiness gate gave up waiting for
// an upstream milestone. The downstream run aborts without writing anything.
type ReadinessTimeoutError struct {
	Kind    MilestoneKind
	AfterID int64
	Waited  time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for milestone %q with id > %d", e.Waited, e.Kind, e.AfterID)
}
