package worker

import (
	"log/slog"

	"github.com/xraph/parley/ext"
	"github.com/xraph/parley/middleware"
)

// Option configures a Worker.
type Option func(*Worker)

// WithConcurrency sets the maximum number of jobs executing at once.
// Values below one are ignored.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithMiddleware appends middleware wrapped around every transport call.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(w *Worker) { w.middleware = append(w.middleware, mws...) }
}

// WithLogger sets the worker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithExtensions sets the extension registry notified of job lifecycle
// events.
func WithExtensions(r *ext.Registry) Option {
	return func(w *Worker) { w.extensions = r }
}

// WithName sets the platform name reported to middleware and extensions.
func WithName(platform string) Option {
	return func(w *Worker) { w.platform = platform }
}
