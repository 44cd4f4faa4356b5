package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/parley/job"
)

// Logging returns middleware that logs call start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (job.Result, error) {
		logger.Debug("api call started",
			slog.String("platform", c.Platform),
			slog.String("method", c.Method()),
			slog.String("job_id", c.Job.ID.String()),
			slog.String("key", c.Job.Key),
			slog.Bool("upload", c.Upload),
		)

		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("api call failed",
				slog.String("platform", c.Platform),
				slog.String("method", c.Method()),
				slog.String("job_id", c.Job.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("api call completed",
				slog.String("platform", c.Platform),
				slog.String("method", c.Method()),
				slog.String("job_id", c.Job.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return res, err
	}
}
