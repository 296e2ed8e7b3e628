package credstore

import (
	"context"
	"sync"
)

// MemoryStore provides an in-memory Store implementation for tests.
// It mirrors SQLite behavior for uniqueness and hashing.
type MemoryStore struct {
	mu      sync.Mutex
	hasher  Hasher
	secrets map[string]string

	// failErr, when set, is returned by every call. Set via FailWith to
	// simulate a store outage.
	failErr error
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates a MemoryStore. A nil hasher defaults to PlainHasher so
// tests can assert on stored values directly.
func NewMemory(hasher Hasher) *MemoryStore {
	if hasher == nil {
		hasher = PlainHasher{}
	}
	return &MemoryStore{
		hasher:  hasher,
		secrets: make(map[string]string),
	}
}

// FailWith makes every subsequent call return err (nil clears it).
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

func (s *MemoryStore) Verify(_ context.Context, username, secret string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	stored, ok := s.secrets[username]
	if !ok {
		return false, nil
	}
	return s.hasher.Compare(secret, stored)
}

func (s *MemoryStore) Create(_ context.Context, username, secret string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	if _, exists := s.secrets[username]; exists {
		return false, nil
	}
	stored, err := s.hasher.Hash(secret)
	if err != nil {
		return false, err
	}
	s.secrets[username] = stored
	return true, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }
