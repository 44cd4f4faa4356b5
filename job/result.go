package job

import (
	"encoding/json"
	"errors"
)

// Result is the raw JSON body a platform returned for a call.
type Result json.RawMessage

// NewResult marshals v into a Result. It panics if v cannot be marshaled,
// which only happens for programmer errors such as channels or funcs.
func NewResult(v any) Result {
	b, err := json.Marshal(v)
	if err != nil {
		panic("job: marshal result: " + err.Error())
	}
	return Result(b)
}

// Decode unmarshals the result into v.
func (r Result) Decode(v any) error {
	if len(r) == 0 {
		return errors.New("job: decode empty result")
	}
	return json.Unmarshal(r, v)
}

// MarshalJSON keeps the raw bytes intact.
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// Outcome is the execution result of one job.
type Outcome struct {
	Success bool
	Result  Result
	Err     error
}

// Succeeded returns a successful outcome.
func Succeeded(res Result) Outcome { return Outcome{Success: true, Result: res} }

// Failed returns a failed outcome.
func Failed(err error) Outcome { return Outcome{Err: err} }

// BatchResult aggregates the outcomes of a submitted batch.
type BatchResult struct {
	// Success is true iff every job in the batch succeeded.
	Success bool

	// Batch holds one entry per submitted job in submission order. A nil
	// entry marks a job that was never attempted.
	Batch []*Outcome

	// Errors lists the failures in job order.
	Errors []error
}

// NewBatchResult builds a BatchResult from per-job outcomes.
func NewBatchResult(outcomes []*Outcome) *BatchResult {
	res := &BatchResult{Success: true, Batch: outcomes}
	for _, o := range outcomes {
		switch {
		case o == nil:
			res.Success = false
		case !o.Success:
			res.Success = false
			if o.Err != nil {
				res.Errors = append(res.Errors, o.Err)
			}
		}
	}
	return res
}

// Results returns the successful results in job order, with nil for jobs
// that failed or were never attempted.
func (b *BatchResult) Results() []Result {
	out := make([]Result, len(b.Batch))
	for i, o := range b.Batch {
		if o != nil && o.Success {
			out[i] = o.Result
		}
	}
	return out
}
