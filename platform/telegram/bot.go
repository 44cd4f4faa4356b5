package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/parley"
	"github.com/xraph/parley/asset"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/middleware"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/render"
	"github.com/xraph/parley/state"
)

// Platform is the platform name used in keys, logs, and metrics.
const Platform = "telegram"

var _ platform.Bot = (*Bot)(nil)

// Bot sends rendered messages through the Bot API and receives updates
// from its webhook.
type Bot struct {
	cfg        parley.Config
	logger     *slog.Logger
	apiURL     string
	client     *http.Client
	store      state.Store
	secret     string
	parseMode  string
	engineOpts []engine.Option

	transport *Transport
	assets    *asset.Manager
	eng       *engine.Engine
}

// New creates a bot for the given Bot API token.
func New(token string, opts ...Option) (*Bot, error) {
	if token == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	b := &Bot{
		cfg:    parley.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.transport = NewTransport(token, b.apiURL, b.client)

	engOpts := []engine.Option{
		engine.WithPlatform(Platform),
		engine.WithLogger(b.logger),
	}
	if b.store != nil {
		b.assets = asset.NewManager(b.store, Platform)
		engOpts = append(engOpts, engine.WithMiddleware(asset.Record(b.assets, fileID, b.logger)))
	}
	engOpts = append(engOpts, b.engineOpts...)
	b.eng = engine.Build(b.transport, b.cfg, engOpts...)
	return b, nil
}

// Platform implements platform.Bot.
func (b *Bot) Platform() string { return Platform }

// Engine returns the underlying engine.
func (b *Bot) Engine() *engine.Engine { return b.eng }

// Assets returns the asset manager, or nil when caching is disabled.
func (b *Bot) Assets() *asset.Manager { return b.assets }

// Start starts the worker.
func (b *Bot) Start(ctx context.Context) error { return b.eng.Start(ctx) }

// Stop stops the worker, failing unsent messages.
func (b *Bot) Stop(ctx context.Context) error { return b.eng.Stop(ctx) }

// Render renders node and sends it to chat. A batch with failures is
// returned as an *engine.DispatchError.
func (b *Bot) Render(ctx context.Context, chat Chat, node render.Node) (*job.BatchResult, error) {
	return b.eng.Render(ctx, chat, node, b.jobs(ctx))
}

// Send implements platform.Bot.
func (b *Bot) Send(ctx context.Context, target job.Target, node render.Node) (*job.BatchResult, error) {
	return b.eng.Render(ctx, target, node, b.jobs(ctx))
}

// MakeAPICall performs a single Bot API method call outside any chat
// order and returns its result, or the platform error.
func (b *Bot) MakeAPICall(ctx context.Context, method string, params map[string]any) (job.Result, error) {
	var chat Chat
	if id, ok := params["chat_id"]; ok {
		chat.ID = fmt.Sprint(id)
	}
	return b.eng.Call(ctx, chat, job.Request{Method: method, Params: params})
}

// Receiver implements platform.Bot.
func (b *Bot) Receiver(h platform.Handler) http.Handler {
	return NewReceiver(h, b.secret, b.logger)
}

// fileID extracts the file id of a sent photo (largest size) or document.
func fileID(_ *middleware.Call, res job.Result) string {
	var msg Message
	if err := res.Decode(&msg); err != nil {
		return ""
	}
	if n := len(msg.Photo); n > 0 {
		return msg.Photo[n-1].FileID
	}
	if msg.Document != nil {
		return msg.Document.FileID
	}
	return ""
}
