package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrUnauthorized is returned by receivers for requests that fail
// signature or token verification.
var ErrUnauthorized = errors.New("parley: webhook verification failed")

// APIError is a failure reported by a platform API.
type APIError struct {
	Platform string
	Method   string

	// StatusCode is the HTTP status, or 0 when the platform reported the
	// failure inside a 200 response.
	StatusCode int

	// Code is the platform's own error code, if any.
	Code int

	Message string

	// Wait is the server supplied delay before the call may be retried.
	Wait time.Duration

	// Temporary marks platform error codes known to be transient, such as
	// throttling reported with a 400 status.
	Temporary bool
}

// Error implements error.
func (e *APIError) Error() string {
	code := e.Code
	if code == 0 {
		code = e.StatusCode
	}
	return fmt.Sprintf("%s: %s failed (%d): %s", e.Platform, e.Method, code, e.Message)
}

// Retryable reports whether the failure was a rate limit, a server
// error, or otherwise marked temporary.
func (e *APIError) Retryable() bool {
	return e.Temporary || e.Wait > 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryAfter returns the server supplied delay.
func (e *APIError) RetryAfter() time.Duration { return e.Wait }

// ParseRetryAfter reads a Retry-After header given in seconds.
// HTTP-date values and garbage yield 0.
func ParseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
