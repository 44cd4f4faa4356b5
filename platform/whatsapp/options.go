package whatsapp

import (
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/xraph/parley"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/state"
)

// Option configures a Bot.
type Option func(*Bot)

// WithToken authenticates with a fixed system user access token.
func WithToken(accessToken string) Option {
	return func(b *Bot) {
		b.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	}
}

// WithTokenSource authenticates with a token source.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(b *Bot) { b.tokens = ts }
}

// WithAppSecret sets the app secret used to verify X-Hub-Signature-256.
func WithAppSecret(secret string) Option {
	return func(b *Bot) { b.appSecret = secret }
}

// WithVerifyToken sets the token expected in webhook verification
// requests.
func WithVerifyToken(token string) Option {
	return func(b *Bot) { b.verifyToken = token }
}

// WithAssets enables media id caching in store.
func WithAssets(store state.Store) Option {
	return func(b *Bot) { b.store = store }
}

// WithConfig sets the dispatch settings.
func WithConfig(cfg parley.Config) Option {
	return func(b *Bot) { b.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithAPIURL overrides the versioned Graph API base.
func WithAPIURL(u string) Option {
	return func(b *Bot) { b.apiURL = u }
}

// WithHTTPClient sets the base client the OAuth 2.0 transport wraps.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.baseClient = c }
}

// WithEngineOptions passes options through to engine.Build.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(b *Bot) { b.engineOpts = append(b.engineOpts, opts...) }
}
