package twitter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/xraph/parley"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/render"
)

// Platform is the platform name used in keys, logs, and metrics.
const Platform = "twitter"

var _ platform.Bot = (*Bot)(nil)

// ErrNoCredentials is returned by New without a token or token source.
var ErrNoCredentials = errors.New("twitter: no access token configured")

// Bot posts rendered threads and direct messages.
type Bot struct {
	cfg            parley.Config
	logger         *slog.Logger
	tokens         oauth2.TokenSource
	consumerSecret string
	apiURL         string
	uploadURL      string
	baseClient     *http.Client
	keys           id.Generator
	engineOpts     []engine.Option

	transport *Transport
	eng       *engine.Engine
}

// New creates a bot. WithToken or WithTokenSource is required.
func New(opts ...Option) (*Bot, error) {
	b := &Bot{
		cfg:    parley.DefaultConfig(),
		logger: slog.Default(),
		keys:   id.TypeIDGenerator{Prefix: id.PrefixKey},
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
	b.transport = NewTransport(oauth2.NewClient(ctx, b.tokens), b.apiURL, b.uploadURL)

	engOpts := append([]engine.Option{
		engine.WithPlatform(Platform),
		engine.WithLogger(b.logger),
	}, b.engineOpts...)
	b.eng = engine.Build(b.transport, b.cfg, engOpts...)
	return b, nil
}

// Platform implements platform.Bot.
func (b *Bot) Platform() string { return Platform }

// Engine returns the underlying engine.
func (b *Bot) Engine() *engine.Engine { return b.eng }

// Start starts the worker.
func (b *Bot) Start(ctx context.Context) error { return b.eng.Start(ctx) }

// Stop stops the worker, failing unsent messages.
func (b *Bot) Stop(ctx context.Context) error { return b.eng.Stop(ctx) }

// Render renders node and posts it to target, a TweetTarget or a
// DirectMessageTarget.
func (b *Bot) Render(ctx context.Context, target job.Target, node render.Node) (*job.BatchResult, error) {
	return b.eng.Render(ctx, target, node, b.jobs())
}

// Send implements platform.Bot.
func (b *Bot) Send(ctx context.Context, target job.Target, node render.Node) (*job.BatchResult, error) {
	return b.Render(ctx, target, node)
}

// Reply renders node as a thread replying to tweetID.
func (b *Bot) Reply(ctx context.Context, tweetID string, node render.Node) (*job.BatchResult, error) {
	return b.Render(ctx, TweetTarget{ReplyTo: tweetID}, node)
}

// MakeAPICall performs a single API request, e.g. ("GET", "2/users/me",
// nil), and returns its body or the platform error.
func (b *Bot) MakeAPICall(ctx context.Context, method, path string, params map[string]any) (job.Result, error) {
	return b.eng.Call(ctx, TweetTarget{}, job.Request{Method: method, Path: path, Params: params})
}

// Receiver implements platform.Bot.
func (b *Bot) Receiver(h platform.Handler) http.Handler {
	return NewReceiver(h, b.consumerSecret, b.logger)
}
