package webview

import (
	"log/slog"

	"github.com/xraph/parley"
	"github.com/xraph/parley/engine"
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

// WithAuthenticator sets how clients authenticate. Without one every
// client is accepted.
func WithAuthenticator(a Authenticator) Option {
	return func(b *Bot) { b.auth = a }
}

// WithBufferSize sets how many event frames are queued per connection.
func WithBufferSize(n int) Option {
	return func(b *Bot) { b.bufferSize = n }
}

// WithEngineOptions passes options to the underlying engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(b *Bot) { b.engineOpts = append(b.engineOpts, opts...) }
}
