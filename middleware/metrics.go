package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/parley/job"
)

// meterName is the instrumentation scope name for parley metrics.
const meterName = "github.com/xraph/parley"

// Metrics returns middleware that records per-call metrics using the
// global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - parley.call.duration (Float64Histogram): call time in seconds,
//     with attributes: platform, method, upload, status ("ok" or "error")
//   - parley.call.executions (Int64Counter): total calls, same attributes
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the OTel API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"parley.call.duration",
		metric.WithDescription("Duration of platform API calls in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"parley.call.executions",
		metric.WithDescription("Total number of platform API calls"),
		metric.WithUnit("{call}"),
	)

	return func(ctx context.Context, c *Call, next Handler) (job.Result, error) {
		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("platform", c.Platform),
			attribute.String("method", c.Method()),
			attribute.Bool("upload", c.Upload),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return res, err
	}
}
