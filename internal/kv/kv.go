// Package kv is the client-side key/value storage the session layer persists
// into: the Go counterpart of a browser's localStorage.
//
// A Store is always scoped to one client. The web client gets one per
// browser (Scoped over a repository.BrowserStorage); the terminal client
// uses the OS keyring (internal/keyring).
package kv

import (
	"context"
	"errors"
	"sync"

	"github.com/sakif/habit-tracker/internal/apperror"
	"github.com/sakif/habit-tracker/internal/repository"
)

// Store is a string key/value store for a single client.
// Get returns an error wrapping apperror.ErrNotFound for a missing key;
// Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Lookup is Get with a missing key reported as ("", false, nil).
func Lookup(ctx context.Context, s Store, key string) (string, bool, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", apperror.NotFound("key", key)
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// scoped binds a BrowserStorage to one browser session id.
type scoped struct {
	storage repository.BrowserStorage
	sid     string
}

// Scoped returns the Store for browser sid inside storage.
func Scoped(storage repository.BrowserStorage, sid string) Store {
	return &scoped{storage: storage, sid: sid}
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.storage.GetItem(ctx, s.sid, key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.storage.SetItem(ctx, s.sid, key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.storage.RemoveItem(ctx, s.sid, key)
}
