package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/parley/ext"
	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension      = (*MetricsExtension)(nil)
	_ ext.BatchSubmitted = (*MetricsExtension)(nil)
	_ ext.BatchCompleted = (*MetricsExtension)(nil)
	_ ext.JobStarted     = (*MetricsExtension)(nil)
	_ ext.JobSucceeded   = (*MetricsExtension)(nil)
	_ ext.JobFailed      = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/parley/observability"

// MetricsExtension records system-wide dispatch metrics. Register it with
// an ext.Registry to track batch throughput, job outcomes, and job
// latency per platform.
type MetricsExtension struct {
	BatchSubmitted metric.Int64Counter
	BatchCompleted metric.Int64Counter
	BatchFailed    metric.Int64Counter
	JobSubmitted   metric.Int64Counter
	JobStarted     metric.Int64Counter
	JobSucceeded   metric.Int64Counter
	JobFailed      metric.Int64Counter
	JobDuration    metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Instrument creation errors fall back to noop
// instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	duration, _ := meter.Float64Histogram("parley.job.duration",
		metric.WithDescription("Time from job start to success in seconds"),
		metric.WithUnit("s"),
	)
	return &MetricsExtension{
		BatchSubmitted: counter("parley.batch.submitted", "Batches submitted for dispatch"),
		BatchCompleted: counter("parley.batch.completed", "Batches in which every job succeeded"),
		BatchFailed:    counter("parley.batch.failed", "Batches with at least one failed job"),
		JobSubmitted:   counter("parley.job.submitted", "Jobs submitted for dispatch"),
		JobStarted:     counter("parley.job.started", "Jobs claimed by a worker"),
		JobSucceeded:   counter("parley.job.succeeded", "Jobs that succeeded"),
		JobFailed:      counter("parley.job.failed", "Jobs that failed"),
		JobDuration:    duration,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func platformAttr(platform string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("platform", platform))
}

// ── Batch lifecycle hooks ───────────────────────────

// OnBatchSubmitted implements ext.BatchSubmitted.
func (m *MetricsExtension) OnBatchSubmitted(ctx context.Context, platform string, _ id.BatchID, jobs []*job.Job) error {
	m.BatchSubmitted.Add(ctx, 1, platformAttr(platform))
	m.JobSubmitted.Add(ctx, int64(len(jobs)), platformAttr(platform))
	return nil
}

// OnBatchCompleted implements ext.BatchCompleted.
func (m *MetricsExtension) OnBatchCompleted(ctx context.Context, platform string, _ id.BatchID, res *job.BatchResult) error {
	if res != nil && res.Success {
		m.BatchCompleted.Add(ctx, 1, platformAttr(platform))
	} else {
		m.BatchFailed.Add(ctx, 1, platformAttr(platform))
	}
	return nil
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobStarted implements ext.JobStarted.
func (m *MetricsExtension) OnJobStarted(ctx context.Context, platform string, _ *job.Job) error {
	m.JobStarted.Add(ctx, 1, platformAttr(platform))
	return nil
}

// OnJobSucceeded implements ext.JobSucceeded.
func (m *MetricsExtension) OnJobSucceeded(ctx context.Context, platform string, _ *job.Job, elapsed time.Duration) error {
	m.JobSucceeded.Add(ctx, 1, platformAttr(platform))
	m.JobDuration.Record(ctx, elapsed.Seconds(), platformAttr(platform))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, platform string, _ *job.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, platformAttr(platform))
	return nil
}
