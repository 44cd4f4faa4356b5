package parley

import "time"

// Config holds the dispatch settings shared by every platform bot.
type Config struct {
	// Concurrency is the maximum number of API calls in flight at once.
	Concurrency int

	// JobTimeout bounds a single API call. Zero disables the deadline,
	// in which case a hung call holds its slot and its key indefinitely.
	JobTimeout time.Duration

	// RateLimit is the sustained number of API calls per second.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket size used with RateLimit.
	RateBurst int

	// RetryAttempts is how many times a call failing with a retryable
	// error is attempted again. Zero disables retries.
	RetryAttempts int

	// ShutdownTimeout is how long Stop waits for in-flight calls before
	// cancelling them.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		JobTimeout:      30 * time.Second,
		RateBurst:       1,
		RetryAttempts:   0,
		ShutdownTimeout: 10 * time.Second,
	}
}
