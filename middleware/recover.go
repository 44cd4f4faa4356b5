package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/parley/job"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (res job.Result, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("api call panicked",
					slog.String("platform", c.Platform),
					slog.String("method", c.Method()),
					slog.String("job_id", c.Job.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				res, retErr = nil, fmt.Errorf("panic in %s call %s: %v", c.Platform, c.Method(), r)
			}
		}()
		return next(ctx)
	}
}
