package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/parley/job"
)

// tracerName is the instrumentation scope name for parley tracing.
const tracerName = "github.com/xraph/parley"

// Tracing returns middleware that wraps every call in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used.
//
// Span attributes include: parley.platform, parley.method, parley.job.id,
// parley.job.key, parley.target and parley.upload.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (job.Result, error) {
		target := ""
		if c.Target != nil {
			target = c.Target.UID()
		}
		ctx, span := tracer.Start(ctx, "parley.call",
			trace.WithAttributes(
				attribute.String("parley.platform", c.Platform),
				attribute.String("parley.method", c.Method()),
				attribute.String("parley.job.id", c.Job.ID.String()),
				attribute.String("parley.job.key", c.Job.Key),
				attribute.String("parley.target", target),
				attribute.Bool("parley.upload", c.Upload),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		res, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return res, err
	}
}
