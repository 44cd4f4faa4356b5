package engine

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/parley/backoff"
	"github.com/xraph/parley/ext"
	"github.com/xraph/parley/id"
	mw "github.com/xraph/parley/middleware"
	"github.com/xraph/parley/render"
)

// Option configures an Engine.
type Option func(*Engine)

// WithPlatform sets the platform name reported to logs, metrics, and
// extensions.
func WithPlatform(name string) Option {
	return func(eng *Engine) { eng.platform = name }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithRenderer replaces render.Default.
func WithRenderer(r render.Renderer) Option {
	return func(eng *Engine) { eng.renderer = r }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pendingExts = append(eng.pendingExts, e) }
}

// WithMiddleware adds middleware to the call chain built by Build. It has
// no effect on engines assembled with New.
func WithMiddleware(m ...mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m...) }
}

// WithBackoff sets the retry backoff strategy used by Build.
// If not set, backoff.DefaultStrategy() is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// WithKeyGenerator sets the generator used by WithDefaultKeys.
func WithKeyGenerator(g id.Generator) Option {
	return func(eng *Engine) { eng.keys = g }
}

// WithDefaultKeys makes the engine give every batch whose jobs all lack a
// key one freshly generated key, so the batch executes in order.
func WithDefaultKeys() Option {
	return func(eng *Engine) { eng.defaultKeys = true }
}
