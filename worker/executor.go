package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/parley"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/middleware"
)

// claim is a job together with the scheduling state resolved for it at
// claim time.
type claim struct {
	job    *job.Job
	target job.Target
	tags   map[string]job.Result
}

// completion reports a finished job's effects back to the loop.
type completion struct {
	job       *job.Job
	refreshed bool
	next      job.Target
	register  map[string]job.Result
}

// execute runs one job's pipeline: dependencies, finalization, the API
// call, and the target refresh. It always reports a completion to the
// loop, even if a hook panics.
func (w *Worker) execute(ctx context.Context, r *run, c claim) (out job.Outcome) {
	comp := completion{job: c.job}
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("job pipeline panicked",
				slog.String("platform", w.platform),
				slog.String("job_id", c.job.ID.String()),
				slog.Any("panic", p),
			)
			out = job.Failed(fmt.Errorf("worker: job %s panicked: %v", c.job.ID, p))
		}
		r.done <- comp
	}()

	w.extensions.EmitJobStarted(ctx, w.platform, c.job)
	start := time.Now()

	res, err := w.perform(ctx, c, &comp)
	if err != nil {
		w.extensions.EmitJobFailed(ctx, w.platform, c.job, err)
		return job.Failed(err)
	}

	w.extensions.EmitJobSucceeded(ctx, w.platform, c.job, time.Since(start))
	return job.Succeeded(res)
}

func (w *Worker) perform(ctx context.Context, c claim, comp *completion) (job.Result, error) {
	j := c.job
	req := j.Request

	if len(j.Dependencies) > 0 {
		deps, err := w.resolveDependencies(ctx, c, comp)
		if err != nil {
			return nil, err
		}
		req, err = j.Finalize(j.Request.Clone(), deps)
		if err != nil {
			return nil, fmt.Errorf("worker: finalize %s: %w", j.ID, err)
		}
	}

	call := &middleware.Call{Platform: w.platform, Job: j, Target: c.target, Request: req}
	res, err := w.chain(ctx, call, func(ctx context.Context) (job.Result, error) {
		return w.transport.Call(ctx, c.target, req)
	})
	if err != nil {
		return nil, err
	}

	if j.RefreshTarget != nil {
		comp.refreshed = true
		comp.next = j.RefreshTarget(c.target, res)
	}
	if j.Register != "" {
		comp.addTag(j.Register, res)
	}
	return res, nil
}

// resolveDependencies returns one result per declared dependency, in
// order. A tag registered by an earlier job of the same key wins over the
// dependency's upload.
func (w *Worker) resolveDependencies(ctx context.Context, c claim, comp *completion) ([]job.Result, error) {
	results := make([]job.Result, len(c.job.Dependencies))
	for i, dep := range c.job.Dependencies {
		if dep.Tag != "" {
			if res, ok := c.tags[dep.Tag]; ok {
				results[i] = res
				continue
			}
			if res, ok := comp.register[dep.Tag]; ok {
				results[i] = res
				continue
			}
		}
		if dep.Upload == nil {
			return nil, fmt.Errorf("%w: tag %q", parley.ErrDependencyUnresolved, dep.Tag)
		}

		upload := *dep.Upload
		call := &middleware.Call{Platform: w.platform, Job: c.job, Target: c.target, Request: upload, Upload: true}
		res, err := w.chain(ctx, call, func(ctx context.Context) (job.Result, error) {
			return w.transport.Upload(ctx, c.target, upload)
		})
		if err != nil {
			return nil, fmt.Errorf("worker: upload dependency %d: %w", i, err)
		}
		results[i] = res
		if dep.Tag != "" {
			comp.addTag(dep.Tag, res)
		}
	}
	return results, nil
}

func (c *completion) addTag(tag string, res job.Result) {
	if c.register == nil {
		c.register = make(map[string]job.Result)
	}
	c.register[tag] = res
}
