// Package engine bridges rendering to dispatch and presents a single
// call/await surface to application code.
//
// An Engine owns one queue and one worker for a platform transport.
// [Build] wires the default middleware stack and observability extension
// around a transport; [New] assembles an engine from a queue and worker
// built by the caller.
//
// # Building an Engine
//
//	eng := engine.Build(transport, parley.NewConfig(parley.WithConcurrency(4)),
//	    engine.WithPlatform("telegram"),
//	    engine.WithLogger(logger),
//	    engine.WithExtension(myExtension),
//	)
//
// # Rendering
//
//	res, err := eng.Render(ctx, chat, render.Fragment(
//	    render.Text("hello"),
//	    render.Break(),
//	    render.Unit(photo),
//	), factory)
//
// Render returns (nil, nil) when the tree has no content. A batch in which
// any job failed is returned as a [*DispatchError] carrying every failure
// and the full batch result. [Engine.DispatchJobs] bypasses rendering and
// returns the raw batch result for callers that handle partial success.
//
// # Options
//
//   - [WithPlatform] names the platform in logs, metrics, and hooks
//   - [WithRenderer] replaces the default renderer
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] appends middleware to the call chain
//   - [WithBackoff] sets the retry backoff strategy
//   - [WithTracerProvider] and [WithMeterProvider] set OpenTelemetry providers
//   - [WithKeyGenerator] and [WithDefaultKeys] assign keys to unkeyed batches
package engine
