package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xraph/parley"
	"github.com/xraph/parley/backoff"
	"github.com/xraph/parley/ext"
	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
	mw "github.com/xraph/parley/middleware"
	"github.com/xraph/parley/observability"
	"github.com/xraph/parley/queue"
	"github.com/xraph/parley/render"
	"github.com/xraph/parley/worker"
)

// JobFactory turns rendered segments into an ordered list of jobs for
// target. It is supplied by each platform.
type JobFactory func(target job.Target, segments []render.Segment) ([]*job.Job, error)

// Engine is the render-and-dispatch surface of one platform.
type Engine struct {
	platform    string
	queue       *queue.Queue
	worker      *worker.Worker
	renderer    render.Renderer
	extensions  *ext.Registry
	keys        id.Generator
	defaultKeys bool
	logger      *slog.Logger

	// Build-time configuration.
	pendingExts    []ext.Extension
	mws            []mw.Middleware
	bo             backoff.Strategy
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

func newEngine(opts []Option) *Engine {
	eng := &Engine{
		renderer: render.Default{},
		keys:     id.TypeIDGenerator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.pendingExts {
		eng.extensions.Register(e)
	}
	return eng
}

// New assembles an engine from a queue and a worker built by the caller.
// The worker must consume q.
func New(q *queue.Queue, w *worker.Worker, opts ...Option) *Engine {
	eng := newEngine(opts)
	eng.queue = q
	eng.worker = w
	if eng.platform == "" {
		eng.platform = w.Platform()
	}
	return eng
}

// Build creates an engine for transport with a fresh queue and a worker
// running the default middleware stack:
// recover → tracing → metrics → logging → rate limit → retry → timeout → custom.
// The observability metrics extension is registered automatically.
func Build(transport worker.Transport, cfg parley.Config, opts ...Option) *Engine {
	eng := newEngine(opts)
	logger := eng.logger

	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/parley"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware and the observability extension.
	var metricsMw mw.Middleware
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/parley"))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter("github.com/xraph/parley/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		defaultMws = append(defaultMws, mw.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}
	if cfg.RetryAttempts > 0 {
		defaultMws = append(defaultMws, mw.Retry(cfg.RetryAttempts, eng.bo, logger))
	}
	defaultMws = append(defaultMws, mw.Timeout(cfg.JobTimeout))

	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	eng.queue = queue.New(queue.WithLogger(logger))
	eng.worker = worker.New(transport,
		worker.WithName(eng.platform),
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithLogger(logger),
		worker.WithExtensions(eng.extensions),
		worker.WithMiddleware(allMws...),
	)
	return eng
}

// Platform returns the platform name.
func (eng *Engine) Platform() string { return eng.platform }

// Queue returns the engine's queue.
func (eng *Engine) Queue() *queue.Queue { return eng.queue }

// Worker returns the engine's worker.
func (eng *Engine) Worker() *worker.Worker { return eng.worker }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Start starts the worker. Render and DispatchJobs start it on demand, so
// calling Start is optional.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.worker.Start(ctx, eng.queue)
}

// Stop stops the worker, waiting for in-flight calls until ctx ends, then
// fails every job still queued with parley.ErrWorkerStopped.
func (eng *Engine) Stop(ctx context.Context) error {
	err := eng.worker.Stop(ctx)
	eng.queue.Close(parley.ErrWorkerStopped)
	eng.extensions.EmitShutdown(ctx)
	return err
}

// Render renders node, turns the segments into jobs with factory, and
// dispatches them. Empty content returns (nil, nil) without touching the
// queue. Renderer and factory errors and invalid jobs are returned as-is;
// a batch with failed jobs is returned as a *DispatchError.
func (eng *Engine) Render(ctx context.Context, target job.Target, node render.Node, factory JobFactory) (*job.BatchResult, error) {
	if factory == nil {
		return nil, parley.ErrNoJobFactory
	}

	segments, err := eng.renderer.Render(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("engine: render: %w", err)
	}
	if len(segments) == 0 {
		return nil, nil
	}

	jobs, err := factory(target, segments)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	res, err := eng.DispatchJobs(ctx, target, jobs)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, newDispatchError(res)
	}
	return res, nil
}

// DispatchJobs submits jobs as one batch and waits for the raw batch
// result. Jobs without a target are sent to target. Partial failure is not
// an error here; inspect the result.
func (eng *Engine) DispatchJobs(ctx context.Context, target job.Target, jobs []*job.Job) (*job.BatchResult, error) {
	eng.prepare(target, jobs)

	if err := eng.Start(ctx); err != nil {
		return nil, err
	}

	ticket, err := eng.queue.Submit(jobs)
	if err != nil {
		return nil, err
	}
	eng.extensions.EmitBatchSubmitted(ctx, eng.platform, ticket.BatchID(), jobs)

	res, err := ticket.Wait(ctx)
	if err != nil {
		eng.logger.Warn("dispatch abandoned",
			slog.String("platform", eng.platform),
			slog.String("batch_id", ticket.BatchID().String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	eng.extensions.EmitBatchCompleted(ctx, eng.platform, ticket.BatchID(), res)
	return res, nil
}

// Call dispatches a single ad-hoc request and returns its result, or the
// first failure.
func (eng *Engine) Call(ctx context.Context, target job.Target, req job.Request) (job.Result, error) {
	res, err := eng.DispatchJobs(ctx, target, []*job.Job{{Target: target, Request: req}})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, newDispatchError(res).First()
	}
	return res.Batch[0].Result, nil
}

func (eng *Engine) prepare(target job.Target, jobs []*job.Job) {
	keyed := false
	for _, j := range jobs {
		if j == nil {
			continue
		}
		if j.Target == nil {
			j.Target = target
		}
		if j.Key != "" {
			keyed = true
		}
	}
	if !eng.defaultKeys || keyed {
		return
	}
	key := eng.keys.Next()
	for _, j := range jobs {
		if j != nil {
			j.Key = key
		}
	}
}

// StartAll starts every engine concurrently and returns the first error.
func StartAll(ctx context.Context, engines ...*Engine) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, eng := range engines {
		g.Go(func() error {
			if err := eng.Start(gctx); err != nil {
				return fmt.Errorf("start %s: %w", eng.platform, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops every engine concurrently, sharing ctx's deadline, and
// joins their errors.
func StopAll(ctx context.Context, engines ...*Engine) error {
	var g errgroup.Group
	errs := make([]error, len(engines))
	for i, eng := range engines {
		g.Go(func() error {
			errs[i] = eng.Stop(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
