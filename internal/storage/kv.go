// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// KV is a string-keyed store of opaque values.
type KV interface {
	// Get returns the value under key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
}

// Backend is a KV with lifecycle and enumeration.
type Backend interface {
	KV

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Keys returns every stored key in lexical order.
	Keys() ([]string, error)

	// Path returns the backing file, or "" for in-memory backends.
	Path() string

	Close() error
}

// Driver names accepted by Open.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Drivers lists the supported driver names.
func Drivers() []string {
	return []string{DriverBolt, DriverSQLite, DriverMemory}
}

// Open creates the backend for driver at path.
func Open(driver, path string) (Backend, error) {
	switch strings.ToLower(driver) {
	case DriverBolt, "bbolt", "":
		return NewBoltBackend(path)
	case DriverSQLite:
		return NewSQLiteBackend(path)
	case DriverMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// =============================================================================
// MEMORY BACKEND
// =============================================================================

// MemoryBackend keeps values in a map. Values are copied on the way in and
// out so callers cannot alias stored bytes.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Get implements KV.
func (m *MemoryBackend) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements KV.
func (m *MemoryBackend) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Remove implements Backend.
func (m *MemoryBackend) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Keys implements Backend.
func (m *MemoryBackend) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Path implements Backend.
func (m *MemoryBackend) Path() string { return "" }

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }
