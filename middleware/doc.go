// Package middleware provides composable middleware around platform API
// calls.
//
// A [Middleware] wraps a single call made by the worker on behalf of a
// job: the main request as well as any upload it depends on. Middleware
// are composed with [Chain] and applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → recover → timeout → call
//	chain := middleware.Chain(
//	    middleware.Logging(logger),
//	    middleware.Recover(logger),
//	    middleware.Timeout(30*time.Second),
//	)
//
// # Built-in Middleware
//
//   - [Logging] logs the platform, method, key, duration, and outcome
//   - [Recover] converts panics in transports into errors
//   - [Timeout] bounds each call with a deadline
//   - [Tracing] wraps each call in an OpenTelemetry span
//   - [Metrics] records call duration and outcome counters
//   - [RateLimit] and [KeyRateLimit] throttle calls with token buckets
//   - [Retry] re-attempts retryable failures with backoff
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, c *middleware.Call, next middleware.Handler) (job.Result, error) {
//	        // pre-processing
//	        res, err := next(ctx)
//	        // post-processing
//	        return res, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., rate limiting on a cancelled context).
package middleware
