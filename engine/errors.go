package engine

import (
	"fmt"

	"github.com/xraph/parley/job"
)

// DispatchError reports a batch in which at least one job failed. The full
// batch result stays attached so callers can tell "everything failed" from
// "some failed".
type DispatchError struct {
	// Errors lists the failures in job order.
	Errors []error

	// Result is the complete batch result, including successful outcomes.
	Result *job.BatchResult
}

func newDispatchError(res *job.BatchResult) *DispatchError {
	return &DispatchError{Errors: res.Errors, Result: res}
}

// Error reports the failure count and the first failure.
func (e *DispatchError) Error() string {
	total := 0
	if e.Result != nil {
		total = len(e.Result.Batch)
	}
	switch len(e.Errors) {
	case 0:
		return fmt.Sprintf("parley: dispatch of %d jobs did not complete", total)
	case 1:
		return fmt.Sprintf("parley: dispatch failed: %v", e.Errors[0])
	default:
		return fmt.Sprintf("parley: %d of %d jobs failed, first: %v", len(e.Errors), total, e.Errors[0])
	}
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error { return e.Errors }

// First returns the first failure, or nil.
func (e *DispatchError) First() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}
