// Package state defines the namespaced key/value store used by platform
// helpers to persist data across restarts, such as the ids of media that
// has already been uploaded. Backends: memory, sqlite, redis, postgres.
package state

import (
	"context"
	"encoding/json"
	"fmt"
)

// UpdateFunc computes a new value from the current one. ok reports whether
// the key existed. Returning keep=false deletes the key.
type UpdateFunc func(old []byte, ok bool) (value []byte, keep bool, err error)

// Store is a key/value store partitioned by namespace. Implementations
// must be safe for concurrent use and must not retain or mutate the byte
// slices passed to or returned from them.
type Store interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, ns, key string) (value []byte, ok bool, err error)

	// Set stores value under key and reports whether the key existed.
	Set(ctx context.Context, ns, key string, value []byte) (existed bool, err error)

	// Update atomically replaces the value under key with fn's result and
	// returns the stored value, or nil when fn deleted it. An error from fn
	// aborts the update.
	Update(ctx context.Context, ns, key string, fn UpdateFunc) ([]byte, error)

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, ns, key string) (bool, error)

	// GetAll returns every key/value pair in ns.
	GetAll(ctx context.Context, ns string) (map[string][]byte, error)

	// Clear removes every key in ns.
	Clear(ctx context.Context, ns string) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}

// GetJSON loads the value under key and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, ns, key string) (T, bool, error) {
	var out T
	raw, ok, err := s.Get(ctx, ns, key)
	if err != nil || !ok {
		return out, ok, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, true, fmt.Errorf("state: decode %s/%s: %w", ns, key, err)
	}
	return out, true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, ns, key string, v any) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("state: encode %s/%s: %w", ns, key, err)
	}
	return s.Set(ctx, ns, key, raw)
}

// Clone returns a copy of b, preserving nil.
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
