package ext

import (
	"context"
	"time"

	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Batch lifecycle hooks
// ──────────────────────────────────────────────────

// BatchSubmitted is called after a batch is accepted by the queue.
type BatchSubmitted interface {
	OnBatchSubmitted(ctx context.Context, platform string, batchID id.BatchID, jobs []*job.Job) error
}

// BatchCompleted is called once every job of a batch has an outcome.
type BatchCompleted interface {
	OnBatchCompleted(ctx context.Context, platform string, batchID id.BatchID, res *job.BatchResult) error
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobStarted is called when a worker claims a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, platform string, j *job.Job) error
}

// JobSucceeded is called after a job's API call succeeds.
type JobSucceeded interface {
	OnJobSucceeded(ctx context.Context, platform string, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called after a job's API call fails.
type JobFailed interface {
	OnJobFailed(ctx context.Context, platform string, j *job.Job, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called when an engine stops.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
