package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/xraph/parley"
	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
)

// Executor runs claimed jobs and returns one outcome per job, in order.
// A returned error is recorded as the outcome of the first claimed job;
// the remaining claimed jobs are reported as never attempted.
type Executor func(ctx context.Context, jobs []*job.Job) ([]job.Outcome, error)

// item is one pending job and where its outcome belongs.
type item struct {
	job   *job.Job
	batch *batch
	index int
}

// batch tracks the outcomes of jobs submitted together.
type batch struct {
	id        id.BatchID
	outcomes  []*job.Outcome
	settled   []bool
	remaining int
	done      chan struct{}
	result    *job.BatchResult
}

// Queue is an ordered holding area for submitted jobs.
// It is safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	pending   []*item
	listeners map[int]func()
	nextID    int
	closed    bool
	closeErr  error
	running   sync.WaitGroup
	inflight  int
	logger    *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used to report executor panics.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		listeners: make(map[int]func()),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Ticket is the handle of a submitted batch.
type Ticket struct {
	q *Queue
	b *batch
}

// BatchID returns the identifier assigned to the batch.
func (t *Ticket) BatchID() id.BatchID { return t.b.id }

// Done is closed once every job of the batch has an outcome.
func (t *Ticket) Done() <-chan struct{} { return t.b.done }

// Wait blocks until the batch resolves. If ctx ends first, the batch's
// unclaimed jobs are withdrawn with ctx.Err() outcomes and ctx.Err() is
// returned; jobs already executing finish in the background.
func (t *Ticket) Wait(ctx context.Context) (*job.BatchResult, error) {
	select {
	case <-t.b.done:
		return t.b.result, nil
	case <-ctx.Done():
		// A batch that resolved as ctx ended still reports its result.
		select {
		case <-t.b.done:
			return t.b.result, nil
		default:
		}
		t.q.withdraw(t.b, ctx.Err())
		return nil, ctx.Err()
	}
}

// Submit validates and appends jobs, preserving their order, and wakes
// submit listeners. Invalid jobs reject the whole batch.
func (q *Queue) Submit(jobs []*job.Job) (*Ticket, error) {
	if len(jobs) == 0 {
		return nil, parley.ErrEmptyBatch
	}
	for i, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, fmt.Errorf("queue: job %d: %w", i, err)
		}
	}

	b := &batch{
		id:        id.NewBatchID(),
		outcomes:  make([]*job.Outcome, len(jobs)),
		settled:   make([]bool, len(jobs)),
		remaining: len(jobs),
		done:      make(chan struct{}),
	}

	q.mu.Lock()
	if q.closed {
		err := q.closeErr
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", parley.ErrQueueClosed, err)
	}
	for i, j := range jobs {
		if j.ID.IsNil() {
			j.ID = id.NewJobID()
		}
		q.pending = append(q.pending, &item{job: j, batch: b, index: i})
	}
	listeners := q.snapshotListeners()
	q.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return &Ticket{q: q, b: b}, nil
}

// SubmitBatch submits jobs and waits for the batch result.
func (q *Queue) SubmitBatch(ctx context.Context, jobs []*job.Job) (*job.BatchResult, error) {
	t, err := q.Submit(jobs)
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx)
}

// Len returns the number of jobs not yet claimed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// PeekAt returns the i-th unclaimed job without removing it.
func (q *Queue) PeekAt(i int) (*job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.pending) {
		return nil, false
	}
	return q.pending[i].job, true
}

// HasKey reports whether an unclaimed job with the given key is pending.
func (q *Queue) HasKey(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.pending {
		if it.job.Key == key {
			return true
		}
	}
	return false
}

// AcquireAt atomically removes count contiguous jobs starting at index i
// and runs exec on them in a new goroutine. The executor's outcomes are
// routed back to the owning batches.
func (q *Queue) AcquireAt(ctx context.Context, i, count int, exec Executor) error {
	q.mu.Lock()
	if count < 1 || i < 0 || i+count > len(q.pending) {
		n := len(q.pending)
		q.mu.Unlock()
		return fmt.Errorf("%w: [%d, %d) of %d", parley.ErrIndexOutOfRange, i, i+count, n)
	}
	claimed := make([]*item, count)
	copy(claimed, q.pending[i:i+count])
	q.pending = append(q.pending[:i], q.pending[i+count:]...)
	q.inflight++
	q.running.Add(1)
	q.mu.Unlock()

	go q.run(ctx, claimed, exec)
	return nil
}

// ClaimAt claims the single job at index i like AcquireAt, but only if
// that index still holds j. Jobs withdrawn by a cancelled Ticket.Wait can
// shift indices between PeekAt and the claim; ClaimAt then returns
// parley.ErrJobNotPending and claims nothing.
func (q *Queue) ClaimAt(ctx context.Context, i int, j *job.Job, exec Executor) error {
	q.mu.Lock()
	if i < 0 || i >= len(q.pending) || q.pending[i].job != j {
		q.mu.Unlock()
		return parley.ErrJobNotPending
	}
	claimed := []*item{q.pending[i]}
	q.pending = append(q.pending[:i], q.pending[i+1:]...)
	q.inflight++
	q.running.Add(1)
	q.mu.Unlock()

	go q.run(ctx, claimed, exec)
	return nil
}

// Idle reports whether the queue has neither pending jobs nor running
// executors.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && q.inflight == 0
}

// Wait blocks until every executor started by AcquireAt has returned.
func (q *Queue) Wait() {
	q.running.Wait()
}

func (q *Queue) run(ctx context.Context, claimed []*item, exec Executor) {
	defer func() {
		q.mu.Lock()
		q.inflight--
		q.mu.Unlock()
		q.running.Done()
	}()

	jobs := make([]*job.Job, len(claimed))
	for k, it := range claimed {
		jobs[k] = it.job
	}

	outcomes, err := q.execute(ctx, jobs, exec)

	for k, it := range claimed {
		var o *job.Outcome
		switch {
		case err != nil:
			if k == 0 {
				failed := job.Failed(err)
				o = &failed
			}
		case k < len(outcomes):
			got := outcomes[k]
			o = &got
		default:
			missing := job.Failed(parley.ErrMissingOutcome)
			o = &missing
		}
		q.settle(it, o)
	}
}

func (q *Queue) execute(ctx context.Context, jobs []*job.Job, exec Executor) (outcomes []job.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue executor panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			outcomes, err = nil, fmt.Errorf("queue: executor panic: %v", r)
		}
	}()
	return exec(ctx, jobs)
}

// OnSubmit registers fn to be called after every submission. The returned
// function unregisters it.
func (q *Queue) OnSubmit(fn func()) (unsubscribe func()) {
	q.mu.Lock()
	key := q.nextID
	q.nextID++
	q.listeners[key] = fn
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.listeners, key)
			q.mu.Unlock()
		})
	}
}

// Close rejects further submissions and fails every unclaimed job with
// err (parley.ErrWorkerStopped when nil). Jobs already claimed finish
// normally.
func (q *Queue) Close(err error) {
	if err == nil {
		err = parley.ErrWorkerStopped
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.closeErr = err
	orphans := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, it := range orphans {
		failed := job.Failed(err)
		q.settle(it, &failed)
	}
}

// withdraw removes the unclaimed jobs of b and fails them with err.
func (q *Queue) withdraw(b *batch, err error) {
	q.mu.Lock()
	var removed []*item
	kept := q.pending[:0]
	for _, it := range q.pending {
		if it.batch == b {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	for k := len(kept); k < len(q.pending); k++ {
		q.pending[k] = nil
	}
	q.pending = kept
	q.mu.Unlock()

	for _, it := range removed {
		failed := job.Failed(err)
		q.settle(it, &failed)
	}
}

// settle records the outcome of one job and resolves its batch when it
// was the last one outstanding.
func (q *Queue) settle(it *item, o *job.Outcome) {
	q.mu.Lock()
	b := it.batch
	if b.settled[it.index] {
		q.mu.Unlock()
		return
	}
	b.settled[it.index] = true
	b.outcomes[it.index] = o
	b.remaining--
	complete := b.remaining == 0
	if complete {
		b.result = job.NewBatchResult(b.outcomes)
	}
	q.mu.Unlock()

	if complete {
		close(b.done)
	}
}

func (q *Queue) snapshotListeners() []func() {
	out := make([]func(), 0, len(q.listeners))
	for _, fn := range q.listeners {
		out = append(out, fn)
	}
	return out
}
