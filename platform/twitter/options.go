package twitter

import (
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/xraph/parley"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/id"
)

// Option configures a Bot.
type Option func(*Bot)

// WithToken authenticates with a fixed OAuth 2.0 user access token.
func WithToken(accessToken string) Option {
	return func(b *Bot) {
		b.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	}
}

// WithTokenSource authenticates with a token source, for example one
// from oauth2.Config.TokenSource that refreshes expired tokens.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(b *Bot) { b.tokens = ts }
}

// WithConsumerSecret sets the app's consumer secret, used to answer CRC
// challenges and verify webhook signatures.
func WithConsumerSecret(secret string) Option {
	return func(b *Bot) { b.consumerSecret = secret }
}

// WithConfig sets the dispatch settings.
func WithConfig(cfg parley.Config) Option {
	return func(b *Bot) { b.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithAPIURL overrides the API endpoint.
func WithAPIURL(u string) Option {
	return func(b *Bot) { b.apiURL = u }
}

// WithUploadURL overrides the media upload endpoint.
func WithUploadURL(u string) Option {
	return func(b *Bot) { b.uploadURL = u }
}

// WithHTTPClient sets the base client the OAuth 2.0 transport wraps.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.baseClient = c }
}

// WithKeyGenerator sets the generator for the keys of new threads.
func WithKeyGenerator(g id.Generator) Option {
	return func(b *Bot) { b.keys = g }
}

// WithEngineOptions passes options through to engine.Build.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(b *Bot) { b.engineOpts = append(b.engineOpts, opts...) }
}
