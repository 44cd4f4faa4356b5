// Package worker drains a queue of platform API calls under a global
// concurrency ceiling and per-key mutual exclusion.
//
// A single loop goroutine owns all scheduling state: the number of jobs in
// flight, the keys they hold, the refreshed target of each key chain, and
// the results registered under tags. The loop wakes on submissions and on
// job completions, so jobs waiting on a locked key resume as soon as the
// key is released.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/xraph/parley"
	"github.com/xraph/parley/ext"
	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/middleware"
	"github.com/xraph/parley/queue"
)

// Worker is the bounded-concurrency, key-respecting consumer of a queue
// for one platform transport.
type Worker struct {
	transport   Transport
	platform    string
	concurrency int
	middleware  []middleware.Middleware
	chain       middleware.Middleware
	extensions  *ext.Registry
	workerID    id.WorkerID
	logger      *slog.Logger

	mu  sync.Mutex
	run *run

	statsMu sync.Mutex
	stats   Stats
}

// run holds the channels of one start/stop cycle.
type run struct {
	q           *queue.Queue
	unsubscribe func()
	wake        chan struct{}
	done        chan completion
	quit        chan struct{}
	exited      chan struct{}
	jobCtx      context.Context
	cancelJobs  context.CancelFunc
}

// state is owned by the loop goroutine.
type state struct {
	active  int
	locked  map[string]id.JobID
	targets map[string]job.Target
	tags    map[string]map[string]job.Result
}

// Stats is a snapshot of the worker's scheduling state.
type Stats struct {
	Running bool
	Active  int
	// LockedKeys lists the keys held by executing jobs, sorted.
	LockedKeys    []string
	CachedTargets int
	TaggedKeys    int
}

// New creates a stopped worker for transport.
func New(transport Transport, opts ...Option) *Worker {
	w := &Worker{
		transport:   transport,
		concurrency: parley.DefaultConfig().Concurrency,
		workerID:    id.NewWorkerID(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.chain = middleware.Chain(w.middleware...)
	return w
}

// WorkerID returns the worker's unique identifier.
func (w *Worker) WorkerID() id.WorkerID { return w.workerID }

// Platform returns the platform name the worker reports.
func (w *Worker) Platform() string { return w.platform }

// Running reports whether the worker has been started and not stopped.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.run != nil
}

// Start registers the worker as q's submit listener and begins scanning.
// Starting a running worker is a no-op. Job contexts derive from ctx's
// values but not its cancellation; use Stop to end the worker.
func (w *Worker) Start(ctx context.Context, q *queue.Queue) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.run != nil {
		return nil
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		q:          q,
		wake:       make(chan struct{}, 1),
		done:       make(chan completion),
		quit:       make(chan struct{}),
		exited:     make(chan struct{}),
		jobCtx:     jobCtx,
		cancelJobs: cancel,
	}
	r.unsubscribe = q.OnSubmit(r.signal)
	w.run = r

	w.logger.Info("worker starting",
		slog.String("worker_id", w.workerID.String()),
		slog.String("platform", w.platform),
		slog.Int("concurrency", w.concurrency),
	)

	go w.loop(r)
	r.signal()
	return nil
}

// Stop unregisters from the queue and stops claiming new jobs, then waits
// for in-flight jobs to finish. If ctx ends first, in-flight jobs are
// cancelled and Stop keeps waiting until they report back. Jobs still
// queued are left for the queue's owner to close. Scheduling state is
// cleared on return.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	r := w.run
	w.run = nil
	w.mu.Unlock()

	if r == nil {
		return nil
	}

	w.logger.Info("worker stopping",
		slog.String("worker_id", w.workerID.String()),
		slog.String("platform", w.platform),
	)

	r.unsubscribe()
	close(r.quit)

	select {
	case <-r.exited:
		w.logger.Info("worker stopped gracefully", slog.String("platform", w.platform))
	case <-ctx.Done():
		w.logger.Warn("worker shutdown timed out, cancelling active jobs",
			slog.String("platform", w.platform),
		)
		r.cancelJobs()
		<-r.exited
	}
	r.cancelJobs()
	return nil
}

// Stats returns a snapshot of the scheduling state.
func (w *Worker) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	s := w.stats
	s.LockedKeys = append([]string(nil), w.stats.LockedKeys...)
	return s
}

func (r *run) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// ──────────────────────────────────────────────────
// Scheduling loop
// ──────────────────────────────────────────────────

func (w *Worker) loop(r *run) {
	defer close(r.exited)

	st := &state{
		locked:  make(map[string]id.JobID),
		targets: make(map[string]job.Target),
		tags:    make(map[string]map[string]job.Result),
	}
	w.publish(st, true)

	for {
		select {
		case <-r.wake:
			w.scan(r, st)
		case c := <-r.done:
			w.complete(r, st, c)
			w.scan(r, st)
		case <-r.quit:
			for st.active > 0 {
				w.complete(r, st, <-r.done)
			}
			clear(st.locked)
			clear(st.targets)
			clear(st.tags)
			w.publish(st, false)
			return
		}
		w.publish(st, true)
	}
}

// scan walks the unclaimed jobs from the front and claims every job whose
// key is free until the concurrency ceiling is reached.
func (w *Worker) scan(r *run, st *state) {
	for i := 0; ; {
		j, ok := r.q.PeekAt(i)
		if !ok {
			return
		}
		if j.Key != "" {
			if _, locked := st.locked[j.Key]; locked {
				i++
				continue
			}
		}
		if st.active >= w.concurrency {
			return
		}

		c := w.prepare(st, j)
		err := r.q.ClaimAt(r.jobCtx, i, j, func(ctx context.Context, _ []*job.Job) ([]job.Outcome, error) {
			return []job.Outcome{w.execute(ctx, r, c)}, nil
		})
		if errors.Is(err, parley.ErrJobNotPending) {
			// The queue shifted under us; start over.
			i = 0
			continue
		}
		if err != nil {
			w.logger.Error("claim job failed",
				slog.String("platform", w.platform),
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			return
		}

		st.active++
		if j.Key != "" {
			st.locked[j.Key] = j.ID
		}
		// The claimed job was removed, so index i now holds its successor.
	}
}

// prepare resolves the job's target and snapshots the results registered
// for its key.
func (w *Worker) prepare(st *state, j *job.Job) claim {
	c := claim{job: j, target: j.Target}
	if j.Key == "" {
		return c
	}
	if t, ok := st.targets[j.Key]; ok {
		c.target = t
	}
	if tags := st.tags[j.Key]; len(tags) > 0 {
		c.tags = make(map[string]job.Result, len(tags))
		for tag, res := range tags {
			c.tags[tag] = res
		}
	}
	return c
}

// complete applies a finished job's effects and releases its key.
func (w *Worker) complete(r *run, st *state, c completion) {
	st.active--

	key := c.job.Key
	if key == "" {
		return
	}

	if c.refreshed {
		if c.next != nil {
			st.targets[key] = c.next
		} else {
			delete(st.targets, key)
		}
	}
	for tag, res := range c.register {
		tags, ok := st.tags[key]
		if !ok {
			tags = make(map[string]job.Result)
			st.tags[key] = tags
		}
		tags[tag] = res
	}

	if owner, ok := st.locked[key]; ok && owner.String() == c.job.ID.String() {
		delete(st.locked, key)
	}
	if !r.q.HasKey(key) {
		delete(st.targets, key)
		delete(st.tags, key)
	}
}

func (w *Worker) publish(st *state, running bool) {
	keys := make([]string, 0, len(st.locked))
	for k := range st.locked {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.statsMu.Lock()
	w.stats = Stats{
		Running:       running,
		Active:        st.active,
		LockedKeys:    keys,
		CachedTargets: len(st.targets),
		TaggedKeys:    len(st.tags),
	}
	w.statsMu.Unlock()
}
