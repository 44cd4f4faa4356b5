package parley

import "time"

// Option adjusts a Config.
type Option func(*Config)

// NewConfig returns DefaultConfig with the given options applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithConcurrency sets the maximum number of concurrent API calls.
func WithConcurrency(n int) Option {
	return func(c *Config) { c.Concurrency = n }
}

// WithJobTimeout sets the per-call deadline.
func WithJobTimeout(d time.Duration) Option {
	return func(c *Config) { c.JobTimeout = d }
}

// WithRateLimit sets the sustained call rate and burst size.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.RateLimit = perSecond
		c.RateBurst = burst
	}
}

// WithRetryAttempts sets how many times retryable failures are retried.
func WithRetryAttempts(n int) Option {
	return func(c *Config) { c.RetryAttempts = n }
}

// WithShutdownTimeout sets how long Stop waits for in-flight calls.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Config) { c.ShutdownTimeout = d }
}
