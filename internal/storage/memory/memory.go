// Package memory is an in-process storage backend. Nothing survives the
// process; use it for tests and demo runs.
package memory

import (
	"context"
	"sync"

	"github.com/sakif/ticketflow/internal/storage"
)

var _ storage.Backend = (*Store)(nil)

// Store is a map guarded by a RWMutex. The zero value is not usable; call New.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Close is a no-op; it exists so Store satisfies storage.Backend.
func (s *Store) Close() error { return nil }
