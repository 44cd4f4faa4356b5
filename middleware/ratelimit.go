package middleware

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/parley/job"
)

// RateLimit returns middleware that waits for a token from limiter before
// every call. A nil limiter makes this middleware a pass-through.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (job.Result, error) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit %s: %w", c.Method(), err)
			}
		}
		return next(ctx)
	}
}

// KeyRateLimit returns middleware that throttles calls per conversation.
// Calls are grouped by job key, or by target UID for unkeyed jobs. Chat
// platforms commonly enforce a per-chat limit on top of the global one.
func KeyRateLimit(limit rate.Limit, burst int) Middleware {
	kl := &keyLimiters{limit: limit, burst: burst, m: make(map[string]*rate.Limiter)}
	return func(ctx context.Context, c *Call, next Handler) (job.Result, error) {
		group := c.Job.Key
		if group == "" && c.Target != nil {
			group = c.Target.UID()
		}
		if err := kl.get(group).Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit %s for %q: %w", c.Method(), group, err)
		}
		return next(ctx)
	}
}

type keyLimiters struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	m     map[string]*rate.Limiter
}

func (k *keyLimiters) get(group string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.m[group]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.m[group] = l
	}
	return l
}
