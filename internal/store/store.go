// Package store is the persistence boundary: small keyed JSON documents
// (squeeze state, time series, cooldowns, throttle history). The core treats
// it as a key-value blob store and assumes nothing about the backend.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound means the key has no stored document.
var ErrNotFound = errors.New("key not found")

// Store persists small JSON-serializable documents by key.
type Store interface {
	// Get unmarshals the document at key into dest. Returns ErrNotFound
	// when the key has never been written.
	Get(ctx context.Context, key string, dest any) error
	// Set marshals value and stores it at key.
	Set(ctx context.Context, key string, value any) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store for tests and one-shot runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Get(ctx context.Context, key string, dest any) error {
	m.mu.RLock()
	data, ok := m.docs[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return unmarshalDoc(data, dest)
}

func (m *Memory) Set(ctx context.Context, key string, value any) error {
	data, err := marshalDoc(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[key] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.docs, key)
	m.mu.Unlock()
	return nil
}
