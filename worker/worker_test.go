package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/parley"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/middleware"
	"github.com/xraph/parley/queue"
	"github.com/xraph/parley/worker"
)

type chat string

func (c chat) UID() string { return string(c) }

type record struct {
	method string
	target string
	start  time.Time
	end    time.Time
}

// fakeTransport answers every call after delay and records timings.
type fakeTransport struct {
	delay time.Duration
	fail  func(req job.Request) error

	mu          sync.Mutex
	calls       []record
	inflight    int
	maxInflight int
	uploads     atomic.Int32
}

func (f *fakeTransport) Call(ctx context.Context, target job.Target, req job.Request) (job.Result, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	start := time.Now()
	var ctxErr error
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			ctxErr = ctx.Err()
		}
	}

	f.mu.Lock()
	f.inflight--
	f.calls = append(f.calls, record{method: req.Method, target: target.UID(), start: start, end: time.Now()})
	f.mu.Unlock()

	if ctxErr != nil {
		return nil, ctxErr
	}
	if f.fail != nil {
		if err := f.fail(req); err != nil {
			return nil, err
		}
	}
	return job.NewResult(map[string]any{
		"method": req.Method,
		"target": target.UID(),
		"id":     target.UID() + "/" + req.Method,
		"params": req.Params,
	}), nil
}

func (f *fakeTransport) Upload(_ context.Context, _ job.Target, req job.Request) (job.Result, error) {
	n := f.uploads.Add(1)
	return job.NewResult(map[string]any{"media_id": fmt.Sprintf("%s-%d", req.Method, n)}), nil
}

func (f *fakeTransport) records() []record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]record(nil), f.calls...)
}

func (f *fakeTransport) max() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func newJob(key, method string) *job.Job {
	return &job.Job{Key: key, Target: chat("c1"), Request: job.Request{Method: method}}
}

func startWorker(t *testing.T, tr worker.Transport, opts ...worker.Option) (*worker.Worker, *queue.Queue) {
	t.Helper()
	q := queue.New()
	w := worker.New(tr, opts...)
	if err := w.Start(context.Background(), q); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return w, q
}

func dispatch(t *testing.T, q *queue.Queue, jobs ...*job.Job) *job.BatchResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := q.SubmitBatch(ctx, jobs)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	return res
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func decode(t *testing.T, res job.Result) map[string]any {
	t.Helper()
	var m map[string]any
	if err := res.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

// ──────────────────────────────────────────────────
// Scheduling
// ──────────────────────────────────────────────────

func TestSameKey_StrictOrderNoOverlap(t *testing.T) {
	tr := &fakeTransport{delay: 10 * time.Millisecond}
	_, q := startWorker(t, tr, worker.WithConcurrency(4))

	jobs := make([]*job.Job, 5)
	for i := range jobs {
		jobs[i] = newJob("k", fmt.Sprintf("m%d", i))
	}
	res := dispatch(t, q, jobs...)
	if !res.Success {
		t.Fatalf("batch failed: %v", res.Errors)
	}

	calls := tr.records()
	if len(calls) != 5 {
		t.Fatalf("calls = %d, want 5", len(calls))
	}
	for i, c := range calls {
		if want := fmt.Sprintf("m%d", i); c.method != want {
			t.Errorf("call %d = %s, want %s", i, c.method, want)
		}
		if i > 0 && c.start.Before(calls[i-1].end) {
			t.Errorf("call %d started before call %d ended", i, i-1)
		}
	}
	if tr.max() != 1 {
		t.Errorf("max in flight for one key = %d, want 1", tr.max())
	}
}

func TestBoundedConcurrency(t *testing.T) {
	tr := &fakeTransport{delay: 15 * time.Millisecond}
	_, q := startWorker(t, tr, worker.WithConcurrency(3))

	var jobs []*job.Job
	for i := range 12 {
		key := ""
		if i%2 == 0 {
			key = fmt.Sprintf("k%d", i%4)
		}
		jobs = append(jobs, newJob(key, fmt.Sprintf("m%d", i)))
	}
	res := dispatch(t, q, jobs...)
	if !res.Success {
		t.Fatalf("batch failed: %v", res.Errors)
	}
	if got := tr.max(); got != 3 {
		t.Errorf("max in flight = %d, want 3", got)
	}
	if len(res.Batch) != len(jobs) {
		t.Fatalf("batch has %d outcomes, want %d", len(res.Batch), len(jobs))
	}
	for i, o := range res.Batch {
		if got := decode(t, o.Result)["method"]; got != fmt.Sprintf("m%d", i) {
			t.Errorf("outcome %d belongs to %v", i, got)
		}
	}
}

func TestAlphaBetaInterleave(t *testing.T) {
	tr := &fakeTransport{delay: 50 * time.Millisecond}
	_, q := startWorker(t, tr, worker.WithConcurrency(2))

	jobs := []*job.Job{
		newJob("alpha", "a1"), newJob("alpha", "a2"), newJob("alpha", "a3"),
		newJob("beta", "b1"), newJob("beta", "b2"), newJob("beta", "b3"),
	}

	start := time.Now()
	res := dispatch(t, q, jobs...)
	elapsed := time.Since(start)

	if !res.Success {
		t.Fatalf("batch failed: %v", res.Errors)
	}
	if got := tr.max(); got != 2 {
		t.Errorf("max in flight = %d, want 2", got)
	}
	if elapsed < 150*time.Millisecond || elapsed > 280*time.Millisecond {
		t.Errorf("elapsed = %v, want about 3x50ms", elapsed)
	}

	order := map[string][]string{}
	for _, c := range tr.records() {
		order[c.method[:1]] = append(order[c.method[:1]], c.method)
	}
	for prefix, want := range map[string][]string{"a": {"a1", "a2", "a3"}, "b": {"b1", "b2", "b3"}} {
		got := order[prefix]
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("%s order = %v, want %v", prefix, got, want)
		}
	}
}

func TestLockedKeyDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	tr := &blockingTransport{release: release, block: "slow"}
	_, q := startWorker(t, tr, worker.WithConcurrency(4))

	slow, err := q.Submit([]*job.Job{newJob("k", "slow"), newJob("k", "after")})
	if err != nil {
		t.Fatal(err)
	}
	res := dispatch(t, q, newJob("other", "fast"), newJob("", "unkeyed"))
	if !res.Success {
		t.Fatalf("unrelated jobs failed: %v", res.Errors)
	}

	select {
	case <-slow.Done():
		t.Fatal("same-key job ran before its predecessor finished")
	default:
	}
	close(release)
	if _, err := slow.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

type blockingTransport struct {
	release chan struct{}
	block   string
}

func (b *blockingTransport) Call(ctx context.Context, _ job.Target, req job.Request) (job.Result, error) {
	if req.Method == b.block {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return job.NewResult(req.Method), nil
}

func (b *blockingTransport) Upload(context.Context, job.Target, job.Request) (job.Result, error) {
	return nil, parley.ErrUploadUnsupported
}

// ──────────────────────────────────────────────────
// Failures
// ──────────────────────────────────────────────────

func TestOneOfThreeFails(t *testing.T) {
	errConn := errors.New("connection reset")
	tr := &fakeTransport{fail: func(req job.Request) error {
		if req.Method == "second" {
			return errConn
		}
		return nil
	}}
	_, q := startWorker(t, tr)

	res := dispatch(t, q, newJob("k", "first"), newJob("k", "second"), newJob("k", "third"))
	if res.Success {
		t.Fatal("batch with a failing job reported success")
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], errConn) {
		t.Fatalf("errors = %v", res.Errors)
	}
	for _, i := range []int{0, 2} {
		if o := res.Batch[i]; o == nil || !o.Success {
			t.Errorf("outcome %d = %+v, want success", i, o)
		}
	}
	if o := res.Batch[1]; o == nil || o.Success {
		t.Errorf("outcome 1 = %+v, want failure", o)
	}
}

func TestFailureDoesNotAffectOtherBatches(t *testing.T) {
	tr := &fakeTransport{fail: func(req job.Request) error {
		if req.Method == "bad" {
			return errors.New("bad request")
		}
		return nil
	}}
	_, q := startWorker(t, tr)

	bad, _ := q.Submit([]*job.Job{newJob("x", "bad")})
	good := dispatch(t, q, newJob("y", "good"))
	if !good.Success {
		t.Fatalf("unrelated batch failed: %v", good.Errors)
	}
	res, err := bad.Wait(context.Background())
	if err != nil || res.Success {
		t.Fatalf("bad batch = %+v, %v", res, err)
	}
}

// ──────────────────────────────────────────────────
// Target chaining
// ──────────────────────────────────────────────────

func replyTo(_ job.Target, res job.Result) job.Target {
	var body struct {
		ID string `json:"id"`
	}
	if err := res.Decode(&body); err != nil {
		return nil
	}
	return chat(body.ID)
}

func TestTargetChaining(t *testing.T) {
	tr := &fakeTransport{}
	w, q := startWorker(t, tr)

	first := &job.Job{Key: "thread", Target: chat("root"), Request: job.Request{Method: "one"}, RefreshTarget: replyTo}
	second := &job.Job{Key: "thread", Target: chat("static2"), Request: job.Request{Method: "two"},
		RefreshTarget: func(job.Target, job.Result) job.Target { return nil }}
	third := &job.Job{Key: "thread", Target: chat("static3"), Request: job.Request{Method: "three"}, RefreshTarget: replyTo}

	res := dispatch(t, q, first, second, third)
	if !res.Success {
		t.Fatalf("batch failed: %v", res.Errors)
	}

	calls := tr.records()
	want := []string{"root", "root/one", "static3"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %d, want %d", len(calls), len(want))
	}
	for i, c := range calls {
		if c.target != want[i] {
			t.Errorf("call %d target = %s, want %s", i, c.target, want[i])
		}
	}

	eventually(t, func() bool { return w.Stats().CachedTargets == 0 },
		"target cache should be dropped once the key is idle")
}

// ──────────────────────────────────────────────────
// Dependencies
// ──────────────────────────────────────────────────

func mergeMedia(req job.Request, deps []job.Result) (job.Request, error) {
	ids := make([]string, len(deps))
	for i, d := range deps {
		var body struct {
			MediaID string `json:"media_id"`
		}
		if err := d.Decode(&body); err != nil {
			return req, err
		}
		ids[i] = body.MediaID
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	req.Params["media_ids"] = ids
	return req, nil
}

func TestDependencies_UploadAndTagReuse(t *testing.T) {
	tr := &fakeTransport{}
	var uploadCalls atomic.Int32
	countUploads := func(ctx context.Context, c *middleware.Call, next middleware.Handler) (job.Result, error) {
		if c.Upload {
			uploadCalls.Add(1)
		}
		return next(ctx)
	}
	_, q := startWorker(t, tr, worker.WithMiddleware(countUploads))

	upload := &job.Request{Method: "media"}
	first := &job.Job{
		Key: "chat", Target: chat("c"), Request: job.Request{Method: "photo"},
		Dependencies: []job.Dependency{{Tag: "logo", Upload: upload}},
		Finalize:     mergeMedia,
	}
	second := &job.Job{
		Key: "chat", Target: chat("c"), Request: job.Request{Method: "photo-again"},
		Dependencies: []job.Dependency{{Tag: "logo"}},
		Finalize:     mergeMedia,
	}

	res := dispatch(t, q, first, second)
	if !res.Success {
		t.Fatalf("batch failed: %v", res.Errors)
	}
	if got := tr.uploads.Load(); got != 1 {
		t.Errorf("uploads = %d, want 1", got)
	}
	if got := uploadCalls.Load(); got != 1 {
		t.Errorf("middleware saw %d upload calls, want 1", got)
	}

	for i, o := range res.Batch {
		params, _ := decode(t, o.Result)["params"].(map[string]any)
		ids, _ := params["media_ids"].([]any)
		if len(ids) != 1 || ids[0] != "media-1" {
			t.Errorf("job %d media_ids = %v", i, params["media_ids"])
		}
	}
	if first.Request.Params != nil {
		t.Error("finalize mutated the job's own request")
	}
}

func TestDependencies_RegisterResult(t *testing.T) {
	tr := &fakeTransport{}
	_, q := startWorker(t, tr)

	first := &job.Job{Key: "chat", Target: chat("c"), Request: job.Request{Method: "create"}, Register: "created"}
	second := &job.Job{
		Key: "chat", Target: chat("c"), Request: job.Request{Method: "edit"},
		Dependencies: []job.Dependency{{Tag: "created"}},
		Finalize: func(req job.Request, deps []job.Result) (job.Request, error) {
			var created struct {
				ID string `json:"id"`
			}
			if err := deps[0].Decode(&created); err != nil {
				return req, err
			}
			req.Params = map[string]any{"ref": created.ID}
			return req, nil
		},
	}

	res := dispatch(t, q, first, second)
	if !res.Success {
		t.Fatalf("batch failed: %v", res.Errors)
	}
	params, _ := decode(t, res.Batch[1].Result)["params"].(map[string]any)
	if params["ref"] != "c/create" {
		t.Errorf("ref = %v, want c/create", params["ref"])
	}
}

func TestDependencies_Unresolved(t *testing.T) {
	_, q := startWorker(t, &fakeTransport{})

	j := &job.Job{
		Key: "chat", Target: chat("c"), Request: job.Request{Method: "edit"},
		Dependencies: []job.Dependency{{Tag: "missing"}},
		Finalize:     mergeMedia,
	}
	res := dispatch(t, q, j)
	if res.Success || !errors.Is(res.Errors[0], parley.ErrDependencyUnresolved) {
		t.Fatalf("result = %+v", res)
	}
}

func TestFinalizeError(t *testing.T) {
	tr := &fakeTransport{}
	_, q := startWorker(t, tr)

	boom := errors.New("bad media")
	j := &job.Job{
		Target: chat("c"), Request: job.Request{Method: "photo"},
		Dependencies: []job.Dependency{{Upload: &job.Request{Method: "media"}}},
		Finalize: func(job.Request, []job.Result) (job.Request, error) {
			return job.Request{}, boom
		},
	}
	res := dispatch(t, q, j)
	if res.Success || !errors.Is(res.Errors[0], boom) {
		t.Fatalf("result = %+v", res)
	}
	if len(tr.records()) != 0 {
		t.Error("call made despite finalize error")
	}
}

func TestPipelinePanicIsRecorded(t *testing.T) {
	_, q := startWorker(t, &fakeTransport{})

	j := &job.Job{
		Key: "k", Target: chat("c"), Request: job.Request{Method: "one"},
		RefreshTarget: func(job.Target, job.Result) job.Target { panic("refresh exploded") },
	}
	res := dispatch(t, q, j, newJob("k", "two"))
	if res.Success || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !res.Batch[1].Success {
		t.Error("key was not released after a panicking job")
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestStart_Idempotent(t *testing.T) {
	tr := &fakeTransport{}
	w, q := startWorker(t, tr)
	if err := w.Start(context.Background(), q); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	res := dispatch(t, q, newJob("", "once"))
	if !res.Success || len(tr.records()) != 1 {
		t.Fatalf("job ran %d times", len(tr.records()))
	}
}

func TestStart_DrainsPendingJobs(t *testing.T) {
	q := queue.New()
	ticket, err := q.Submit([]*job.Job{newJob("", "early")})
	if err != nil {
		t.Fatal(err)
	}

	w := worker.New(&fakeTransport{})
	if err := w.Start(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if res, err := ticket.Wait(ctx); err != nil || !res.Success {
		t.Fatalf("pending job not executed: %+v, %v", res, err)
	}
}

func TestStop_WaitsForInFlight(t *testing.T) {
	tr := &fakeTransport{delay: 40 * time.Millisecond}
	q := queue.New()
	w := worker.New(tr)
	_ = w.Start(context.Background(), q)

	ticket, _ := q.Submit([]*job.Job{newJob("k", "inflight")})
	eventually(t, func() bool { return w.Stats().Active == 1 }, "job never started")

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(tr.records()) != 1 {
		t.Fatal("Stop returned before the in-flight call finished")
	}
	if res, _ := ticket.Wait(context.Background()); !res.Success {
		t.Errorf("in-flight job should complete normally: %+v", res)
	}

	stats := w.Stats()
	if stats.Running || stats.Active != 0 || len(stats.LockedKeys) != 0 {
		t.Errorf("stats after stop = %+v", stats)
	}
	if w.Running() {
		t.Error("worker still running")
	}
}

func TestStop_CancelsOnDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	q := queue.New()
	w := worker.New(&blockingTransport{release: release, block: "hung"})
	_ = w.Start(context.Background(), q)

	ticket, _ := q.Submit([]*job.Job{newJob("k", "hung")})
	eventually(t, func() bool { return w.Stats().Active == 1 }, "job never started")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	res, err := ticket.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || !errors.Is(res.Errors[0], context.Canceled) {
		t.Errorf("hung job should be cancelled, got %+v", res)
	}
}

func TestStop_LeavesQueuedJobs(t *testing.T) {
	tr := &fakeTransport{delay: 30 * time.Millisecond}
	q := queue.New()
	w := worker.New(tr, worker.WithConcurrency(1))
	_ = w.Start(context.Background(), q)

	_, _ = q.Submit([]*job.Job{newJob("", "first"), newJob("", "second")})
	eventually(t, func() bool { return w.Stats().Active == 1 }, "job never started")
	_ = w.Stop(context.Background())

	if q.Len() != 1 {
		t.Fatalf("queued jobs = %d, want 1 left unclaimed", q.Len())
	}
	if len(tr.records()) != 1 {
		t.Errorf("calls after stop = %d, want 1", len(tr.records()))
	}
}

func TestRestartAfterStop(t *testing.T) {
	tr := &fakeTransport{}
	q := queue.New()
	w := worker.New(tr)
	_ = w.Start(context.Background(), q)
	_ = w.Stop(context.Background())
	_ = w.Start(context.Background(), q)
	defer func() { _ = w.Stop(context.Background()) }()

	if res := dispatch(t, q, newJob("", "again")); !res.Success {
		t.Fatalf("restarted worker did not run job: %v", res.Errors)
	}
}
