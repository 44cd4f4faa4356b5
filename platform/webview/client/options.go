package client

import (
	"log/slog"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the API key or JWT sent in the auth frame.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithFormat selects the frame codec: "json" (default) or "msgpack".
func WithFormat(format string) Option {
	return func(c *Client) { c.format = format }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithAuthTimeout bounds the wait for the auth response.
func WithAuthTimeout(d time.Duration) Option {
	return func(c *Client) { c.authTimeout = d }
}

// WithBufferSize sets how many events are buffered before the read loop
// blocks.
func WithBufferSize(n int) Option {
	return func(c *Client) { c.bufferSize = n }
}
