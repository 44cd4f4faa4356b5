package webview

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/xraph/parley"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/render"
)

// Platform is the platform name used in keys, logs, and metrics.
const Platform = "webview"

var _ platform.Bot = (*Bot)(nil)

// Bot publishes rendered messages to WebSocket clients.
type Bot struct {
	cfg        parley.Config
	logger     *slog.Logger
	auth       Authenticator
	bufferSize int
	engineOpts []engine.Option

	hub       *Hub
	transport *Transport
	eng       *engine.Engine
}

// New creates a bot with its own hub.
func New(opts ...Option) *Bot {
	b := &Bot{
		cfg:    parley.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.auth == nil {
		b.logger.Warn("webview has no authenticator, accepting every client")
		b.auth = NoopAuthenticator{}
	}

	b.hub = NewHub(b.bufferSize)
	b.transport = NewTransport(b.hub)
	engOpts := append([]engine.Option{
		engine.WithPlatform(Platform),
		engine.WithLogger(b.logger),
	}, b.engineOpts...)
	b.eng = engine.Build(b.transport, b.cfg, engOpts...)
	return b
}

// Platform implements platform.Bot.
func (b *Bot) Platform() string { return Platform }

// Engine returns the underlying engine.
func (b *Bot) Engine() *engine.Engine { return b.eng }

// Hub returns the connection hub.
func (b *Bot) Hub() *Hub { return b.hub }

// Start starts the worker.
func (b *Bot) Start(ctx context.Context) error { return b.eng.Start(ctx) }

// Stop stops the worker, failing unsent messages, then closes every
// client connection.
func (b *Bot) Stop(ctx context.Context) error {
	err := b.eng.Stop(ctx)
	b.hub.Close()
	return err
}

// Render renders node and publishes it to target, a Thread or a
// Connection.
func (b *Bot) Render(ctx context.Context, target job.Target, node render.Node) (*job.BatchResult, error) {
	return b.eng.Render(ctx, target, node, b.jobs())
}

// Send implements platform.Bot.
func (b *Bot) Send(ctx context.Context, target job.Target, node render.Node) (*job.BatchResult, error) {
	return b.Render(ctx, target, node)
}

// MakeAPICall publishes a single frame of method to target.
func (b *Bot) MakeAPICall(ctx context.Context, target job.Target, method string, params map[string]any) (job.Result, error) {
	return b.eng.Call(ctx, target, job.Request{Method: method, Params: params})
}

// Receiver implements platform.Bot. The returned handler upgrades
// requests to WebSocket connections.
func (b *Bot) Receiver(h platform.Handler) http.Handler {
	return NewServer(b.hub, h, b.auth, b.logger)
}
