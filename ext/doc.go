// Package ext defines the extension system for parley.
//
// # Implementing an Extension
//
//	type auditExt struct{ log *slog.Logger }
//
//	func (e *auditExt) Name() string { return "audit" }
//
//	func (e *auditExt) OnJobFailed(ctx context.Context, platform string, j *job.Job, err error) error {
//	    e.log.Warn("api call failed", "platform", platform, "method", j.Request.Method, "error", err)
//	    return nil
//	}
//
// # Hooks
//
//   - [BatchSubmitted]: a rendered batch was accepted by the queue
//   - [JobStarted]: a worker claimed the job
//   - [JobSucceeded]: the platform call returned a result
//   - [JobFailed]: the platform call failed; sibling jobs are unaffected
//   - [BatchCompleted]: every job of the batch has an outcome
//   - [Shutdown]: the engine is stopping
//
// Hook errors are logged and never interrupt dispatching.
package ext
