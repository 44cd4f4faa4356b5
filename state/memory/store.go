// Package memory implements state.Store in process memory. Safe for
// concurrent access. Intended for tests, development, and single-process
// deployments that can afford to lose state on restart.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/parley"
	"github.com/xraph/parley/state"
)

var _ state.Store = (*Store)(nil)

// Store is a fully in-memory state.Store.
type Store struct {
	mu     sync.Mutex
	data   map[string]map[string][]byte
	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

// Get implements state.Store.
func (s *Store) Get(_ context.Context, ns, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, parley.ErrStoreClosed
	}
	v, ok := s.data[ns][key]
	return state.Clone(v), ok, nil
}

// Set implements state.Store.
func (s *Store) Set(_ context.Context, ns, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, parley.ErrStoreClosed
	}
	_, existed := s.data[ns][key]
	s.put(ns, key, value)
	return existed, nil
}

// Update implements state.Store. fn runs under the store lock and must
// not call back into the store.
func (s *Store) Update(_ context.Context, ns, key string, fn state.UpdateFunc) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, parley.ErrStoreClosed
	}

	old, ok := s.data[ns][key]
	value, keep, err := fn(state.Clone(old), ok)
	if err != nil {
		return nil, err
	}
	if !keep {
		s.remove(ns, key)
		return nil, nil
	}
	s.put(ns, key, value)
	return state.Clone(value), nil
}

// Delete implements state.Store.
func (s *Store) Delete(_ context.Context, ns, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, parley.ErrStoreClosed
	}
	_, ok := s.data[ns][key]
	s.remove(ns, key)
	return ok, nil
}

// GetAll implements state.Store.
func (s *Store) GetAll(_ context.Context, ns string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, parley.ErrStoreClosed
	}
	out := make(map[string][]byte, len(s.data[ns]))
	for k, v := range s.data[ns] {
		out[k] = state.Clone(v)
	}
	return out, nil
}

// Clear implements state.Store.
func (s *Store) Clear(_ context.Context, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return parley.ErrStoreClosed
	}
	delete(s.data, ns)
	return nil
}

// Ping implements state.Store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return parley.ErrStoreClosed
	}
	return nil
}

// Close drops all data. Later calls return parley.ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

func (s *Store) put(ns, key string, value []byte) {
	m, ok := s.data[ns]
	if !ok {
		m = make(map[string][]byte)
		s.data[ns] = m
	}
	m[key] = state.Clone(value)
}

func (s *Store) remove(ns, key string) {
	m, ok := s.data[ns]
	if !ok {
		return
	}
	delete(m, key)
	if len(m) == 0 {
		delete(s.data, ns)
	}
}
