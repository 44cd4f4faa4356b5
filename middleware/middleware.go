package middleware

import (
	"context"

	"github.com/xraph/parley/job"
)

// Call describes one platform API call about to be made.
type Call struct {
	// Platform names the bot the call belongs to, e.g. "telegram".
	Platform string

	// Job is the job the call is made for.
	Job *job.Job

	// Target is the resolved target, which may differ from Job.Target
	// when an earlier job of the same key refreshed it.
	Target job.Target

	// Request is the finalized request (or the upload request).
	Request job.Request

	// Upload is true when the call resolves a dependency upload.
	Upload bool
}

// Method returns a short name for the call used in logs and metrics.
func (c *Call) Method() string {
	if c.Request.Method != "" {
		return c.Request.Method
	}
	return c.Request.Path
}

// Handler is the terminal function that performs the call.
type Handler func(ctx context.Context) (job.Result, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the call being made, and the next
// handler. Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, c *Call, next Handler) (job.Result, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (job.Result, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (job.Result, error) {
				return mw(ctx, c, prev)
			}
		}
		return h(ctx)
	}
}
