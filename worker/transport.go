package worker

import (
	"context"

	"github.com/xraph/parley/job"
)

// Transport performs platform API calls. Implementations must be safe for
// concurrent use: the worker calls them from up to its concurrency
// ceiling of goroutines at once.
type Transport interface {
	// Call sends req to target and returns the platform's response body.
	Call(ctx context.Context, target job.Target, req job.Request) (job.Result, error)

	// Upload executes a dependency upload and returns its result. Transports
	// without an upload endpoint return parley.ErrUploadUnsupported.
	Upload(ctx context.Context, target job.Target, req job.Request) (job.Result, error)
}
