package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

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
const Platform = "whatsapp"

var _ platform.Bot = (*Bot)(nil)

// ErrNoCredentials is returned by New without a token or token source.
var ErrNoCredentials = errors.New("whatsapp: no access token configured")

// Bot sends rendered messages through the Cloud API.
type Bot struct {
	cfg         parley.Config
	logger      *slog.Logger
	tokens      oauth2.TokenSource
	appSecret   string
	verifyToken string
	apiURL      string
	baseClient  *http.Client
	store       state.Store
	engineOpts  []engine.Option

	transport *Transport
	assets    *asset.Manager
	eng       *engine.Engine
}

// New creates a bot. WithToken or WithTokenSource is required.
func New(opts ...Option) (*Bot, error) {
	b := &Bot{
		cfg:    parley.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tokens == nil {
		return nil, ErrNoCredentials
	}

	ctx := context.Background()
	if b.baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.baseClient)
	}
	b.transport = NewTransport(oauth2.NewClient(ctx, b.tokens), b.apiURL)

	engOpts := []engine.Option{
		engine.WithPlatform(Platform),
		engine.WithLogger(b.logger),
	}
	if b.store != nil {
		b.assets = asset.NewManager(b.store, Platform)
		engOpts = append(engOpts, engine.WithMiddleware(asset.Record(b.assets, uploadedID, b.logger)))
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

// Render renders node and sends it to chat.
func (b *Bot) Render(ctx context.Context, chat Chat, node render.Node) (*job.BatchResult, error) {
	return b.eng.Render(ctx, chat, node, b.jobs(ctx))
}

// Send implements platform.Bot.
func (b *Bot) Send(ctx context.Context, target job.Target, node render.Node) (*job.BatchResult, error) {
	return b.eng.Render(ctx, target, node, b.jobs(ctx))
}

// MakeAPICall performs a single Graph API request relative to the
// versioned base, e.g. ("GET", "<phone number id>", nil).
func (b *Bot) MakeAPICall(ctx context.Context, method, path string, params map[string]any) (job.Result, error) {
	return b.eng.Call(ctx, Chat{}, job.Request{Method: method, Path: path, Params: params})
}

// Receiver implements platform.Bot.
func (b *Bot) Receiver(h platform.Handler) http.Handler {
	return NewReceiver(h, b.appSecret, b.verifyToken, b.logger)
}

// uploadedID extracts the media id of upload calls.
func uploadedID(c *middleware.Call, res job.Result) string {
	if !c.Upload {
		return ""
	}
	var up struct {
		ID string `json:"id"`
	}
	if err := res.Decode(&up); err != nil {
		return ""
	}
	return up.ID
}
