package telegram

import (
	"log/slog"
	"net/http"

	"github.com/xraph/parley"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/state"
)

// Option configures a Bot.
type Option func(*Bot)

// WithConfig sets the dispatch settings.
func WithConfig(cfg parley.Config) Option {
	return func(b *Bot) { b.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithAPIURL overrides the Bot API endpoint, e.g. for a local Bot API
// server.
func WithAPIURL(u string) Option {
	return func(b *Bot) { b.apiURL = u }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.client = c }
}

// WithAssets enables file id caching in store.
func WithAssets(store state.Store) Option {
	return func(b *Bot) { b.store = store }
}

// WithSecretToken sets the secret Telegram echoes in the
// X-Telegram-Bot-Api-Secret-Token header of webhook deliveries.
func WithSecretToken(secret string) Option {
	return func(b *Bot) { b.secret = secret }
}

// WithParseMode sets the parse_mode of text messages and captions,
// e.g. "HTML" or "MarkdownV2".
func WithParseMode(mode string) Option {
	return func(b *Bot) { b.parseMode = mode }
}

// WithEngineOptions passes options through to engine.Build.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(b *Bot) { b.engineOpts = append(b.engineOpts, opts...) }
}
