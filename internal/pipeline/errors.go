package pipeline

import "fmt"

// UnitError is a recoverable failure scoped to a single text unit. It is
// recorded in the manifest and never aborts the run on its own.
type UnitError struct {
	// Index is the sequence index of the failed unit.
	Index int

	// Stage names the pipeline stage that failed for this unit.
	Stage Stage

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %d %s failed: %v", e.Index, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnitError) Unwrap() error { return e.Err }

// FatalError is the single error surfaced to the caller when a run cannot
// produce any narration. The caller sees the Reason string, never a raw
// inference stack trace.
type FatalError struct {
	// Reason is a short human-readable description of why the run failed.
	Reason string

	// Err is the underlying cause, if any. It is available for logs via
	// Unwrap but is not part of the user-visible Reason.
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return "pipeline failed: " + e.Reason
}

// Unwrap returns the underlying cause, which may be nil.
func (e *FatalError) Unwrap() error { return e.Err }
