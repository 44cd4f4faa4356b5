package middleware

import (
	"context"
	"time"

	"github.com/xraph/parley/job"
)

// Timeout returns middleware that enforces a deadline on every call.
// When the deadline is exceeded the context is cancelled and the
// transport should return context.DeadlineExceeded. A non-positive d
// makes this middleware a pass-through.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *Call, next Handler) (job.Result, error) {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
