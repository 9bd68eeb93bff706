package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store used by tests. SetError, when non-nil,
// makes every Set fail with that error so persistence faults can be
// exercised.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]json.RawMessage
	setErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]json.RawMessage),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}

	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return cp, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setErr != nil {
		return s.setErr
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.docs[key] = raw
	return nil
}

// SetError makes subsequent Set calls fail with err. Pass nil to restore
// normal behavior.
func (s *MemoryStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}
