package session

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryStore constructs an in-memory Store implementation for tests and development.
func NewMemoryStore() Store {
	return &memoryStore{states: make(map[int64]State)}
}

// Get returns the state for a chat or ErrNotFound.
func (m *memoryStore) Get(_ context.Context, chatID int64) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[chatID]
	if !ok {
		return "", ErrNotFound
	}
	return st, nil
}

// Set updates the state for a chat, creating the record if necessary.
func (m *memoryStore) Set(_ context.Context, chatID int64, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[chatID] = st
	return nil
}
