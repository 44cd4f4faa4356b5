// Package parley is a multi-platform chat-bot dispatch framework for Go.
//
// Every platform (Telegram, Twitter, WhatsApp, the WebSocket webview) renders
// a message tree into segments, turns the segments into outbound jobs, and
// hands the jobs to a shared dispatch core:
//
//	render.Node ──► []render.Segment ──► []*job.Job ──► queue ──► worker ──► platform API
//
// The core guarantees that:
//
//   - no more than Config.Concurrency API calls are in flight at once,
//   - jobs sharing a key (usually one per conversation) run strictly one at a
//     time in submission order while other keys proceed in parallel,
//   - results flow forward inside a key chain (an uploaded media id reaches
//     the message that references it, a created tweet becomes the reply
//     target of the next one),
//   - a failed call only fails its own job; the batch reports every outcome.
//
// # Quick Start
//
//	bot, err := telegram.New(token,
//	    telegram.WithConfig(parley.NewConfig(parley.WithConcurrency(20))),
//	    telegram.WithLogger(logger),
//	)
//	if err := bot.Start(ctx); err != nil { ... }
//	defer bot.Stop(ctx)
//
//	_, err = bot.Render(ctx, telegram.Chat{ID: 42}, render.Fragment(
//	    render.Text("hello"),
//	    render.Break(),
//	    render.Text("world"),
//	))
//
// # Architecture
//
// The dispatch core lives in the job, queue, worker and engine packages.
// Platform packages only supply a job factory and a worker.Transport.
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package parley
