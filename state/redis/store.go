// Package redis implements state.Store on Redis. Each namespace is one
// Redis hash under "parley:state:{namespace}", so Clear is a single DEL
// and GetAll a single HGETALL.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstate.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/parley/state"
)

const keyPrefix = "parley:state:"

// maxUpdateAttempts bounds optimistic retries when a watched hash changes
// under an Update.
const maxUpdateAttempts = 64

var _ state.Store = (*Store)(nil)

// ErrUpdateConflict is returned when Update loses the optimistic race
// maxUpdateAttempts times in a row.
var ErrUpdateConflict = errors.New("parley/redis: update conflict")

// nsKey returns the hash key for a namespace: parley:state:{ns}
func nsKey(ns string) string { return keyPrefix + ns }

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is a Redis-backed state.Store.
type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// New creates a Redis-backed store. The caller owns the client lifecycle.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.UniversalClient { return s.client }

// Get implements state.Store.
func (s *Store) Get(ctx context.Context, ns, key string) ([]byte, bool, error) {
	v, err := s.client.HGet(ctx, nsKey(ns), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("parley/redis: get %s/%s: %w", ns, key, err)
	}
	return v, true, nil
}

// Set implements state.Store.
func (s *Store) Set(ctx context.Context, ns, key string, value []byte) (bool, error) {
	added, err := s.client.HSet(ctx, nsKey(ns), key, value).Result()
	if err != nil {
		return false, fmt.Errorf("parley/redis: set %s/%s: %w", ns, key, err)
	}
	return added == 0, nil
}

// Update implements state.Store with WATCH/MULTI. fn may run more than
// once when the namespace is modified concurrently, so it must be free of
// side effects.
func (s *Store) Update(ctx context.Context, ns, key string, fn state.UpdateFunc) ([]byte, error) {
	k := nsKey(ns)
	var out []byte

	txf := func(tx *redis.Tx) error {
		old, err := tx.HGet(ctx, k, key).Bytes()
		ok := true
		if errors.Is(err, redis.Nil) {
			ok, err = false, nil
		}
		if err != nil {
			return err
		}

		value, keep, err := fn(old, ok)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.HSet(ctx, k, key, value)
			} else {
				pipe.HDel(ctx, k, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		out = nil
		if keep {
			out = state.Clone(value)
		}
		return nil
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return out, err
	}
	s.logger.Warn("state update gave up after conflicts",
		slog.String("namespace", ns),
		slog.String("key", key),
	)
	return nil, fmt.Errorf("%w: %s/%s", ErrUpdateConflict, ns, key)
}

// Delete implements state.Store.
func (s *Store) Delete(ctx context.Context, ns, key string) (bool, error) {
	n, err := s.client.HDel(ctx, nsKey(ns), key).Result()
	if err != nil {
		return false, fmt.Errorf("parley/redis: delete %s/%s: %w", ns, key, err)
	}
	return n > 0, nil
}

// GetAll implements state.Store.
func (s *Store) GetAll(ctx context.Context, ns string) (map[string][]byte, error) {
	m, err := s.client.HGetAll(ctx, nsKey(ns)).Result()
	if err != nil {
		return nil, fmt.Errorf("parley/redis: get all %s: %w", ns, err)
	}
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = []byte(v)
	}
	return out, nil
}

// Clear implements state.Store.
func (s *Store) Clear(ctx context.Context, ns string) error {
	if err := s.client.Del(ctx, nsKey(ns)).Err(); err != nil {
		return fmt.Errorf("parley/redis: clear %s: %w", ns, err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
