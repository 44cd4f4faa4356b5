package ext

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type batchSubmittedEntry struct {
	name string
	hook BatchSubmitted
}

type batchCompletedEntry struct {
	name string
	hook BatchCompleted
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobSucceededEntry struct {
	name string
	hook JobSucceeded
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. Hooks are type-cached at registration so emit calls iterate
// only over extensions implementing the relevant hook. A nil *Registry
// is valid and drops every event.
type Registry struct {
	mu         sync.RWMutex
	extensions []Extension
	logger     *slog.Logger

	batchSubmitted []batchSubmittedEntry
	batchCompleted []batchCompletedEntry
	jobStarted     []jobStartedEntry
	jobSucceeded   []jobSucceededEntry
	jobFailed      []jobFailedEntry
	shutdown       []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(BatchSubmitted); ok {
		r.batchSubmitted = append(r.batchSubmitted, batchSubmittedEntry{name, h})
	}
	if h, ok := e.(BatchCompleted); ok {
		r.batchCompleted = append(r.batchCompleted, batchCompletedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobSucceeded); ok {
		r.jobSucceeded = append(r.jobSucceeded, jobSucceededEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Extension(nil), r.extensions...)
}

// EmitBatchSubmitted notifies all extensions that implement BatchSubmitted.
func (r *Registry) EmitBatchSubmitted(ctx context.Context, platform string, batchID id.BatchID, jobs []*job.Job) {
	if r == nil {
		return
	}
	r.mu.RLock()
	entries := r.batchSubmitted
	r.mu.RUnlock()
	for _, e := range entries {
		if err := e.hook.OnBatchSubmitted(ctx, platform, batchID, jobs); err != nil {
			r.logHookError("OnBatchSubmitted", e.name, err)
		}
	}
}

// EmitBatchCompleted notifies all extensions that implement BatchCompleted.
func (r *Registry) EmitBatchCompleted(ctx context.Context, platform string, batchID id.BatchID, res *job.BatchResult) {
	if r == nil {
		return
	}
	r.mu.RLock()
	entries := r.batchCompleted
	r.mu.RUnlock()
	for _, e := range entries {
		if err := e.hook.OnBatchCompleted(ctx, platform, batchID, res); err != nil {
			r.logHookError("OnBatchCompleted", e.name, err)
		}
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, platform string, j *job.Job) {
	if r == nil {
		return
	}
	r.mu.RLock()
	entries := r.jobStarted
	r.mu.RUnlock()
	for _, e := range entries {
		if err := e.hook.OnJobStarted(ctx, platform, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobSucceeded notifies all extensions that implement JobSucceeded.
func (r *Registry) EmitJobSucceeded(ctx context.Context, platform string, j *job.Job, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.mu.RLock()
	entries := r.jobSucceeded
	r.mu.RUnlock()
	for _, e := range entries {
		if err := e.hook.OnJobSucceeded(ctx, platform, j, elapsed); err != nil {
			r.logHookError("OnJobSucceeded", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, platform string, j *job.Job, jobErr error) {
	if r == nil {
		return
	}
	r.mu.RLock()
	entries := r.jobFailed
	r.mu.RUnlock()
	for _, e := range entries {
		if err := e.hook.OnJobFailed(ctx, platform, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	if r == nil {
		return
	}
	r.mu.RLock()
	entries := r.shutdown
	r.mu.RUnlock()
	for _, e := range entries {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
