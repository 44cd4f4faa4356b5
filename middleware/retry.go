package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/parley/backoff"
	"github.com/xraph/parley/job"
)

// Retryable is implemented by errors that know whether repeating the call
// may succeed, such as rate-limit and server errors from platform APIs.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err, or an error it wraps, is retryable.
// Context errors never are.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	return errors.As(err, &r) && r.Retryable()
}

// Retry returns middleware that re-attempts a failed call up to attempts
// more times while the error is retryable. The delay between attempts
// comes from strategy unless the error carries a platform supplied
// retry-after duration.
func Retry(attempts int, strategy backoff.Strategy, logger *slog.Logger) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (job.Result, error) {
		res, err := next(ctx)
		for attempt := 1; attempt <= attempts && IsRetryable(err); attempt++ {
			delay := backoff.For(strategy, attempt, err)
			logger.Warn("retrying api call",
				slog.String("platform", c.Platform),
				slog.String("method", c.Method()),
				slog.String("job_id", c.Job.ID.String()),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, errors.Join(err, ctx.Err())
			case <-timer.C:
			}
			res, err = next(ctx)
		}
		return res, err
	}
}
