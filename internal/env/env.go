// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package env models the surfaces ("tabs") a user has open against one
// local store.
//
// A Browser owns the shared storage backend and tracks its open tabs. Each
// Tab has its own location and event bus. Writing through one tab raises a
// storage signal on every other tab of the same browser, never on the writer;
// same-tab changes are announced explicitly with Dispatch.
package env

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/notify"
	"github.com/jeranaias/convo/internal/storage"
)

// Environment is what a session needs from its host surface: a location,
// storage, and the signal stream.
type Environment interface {
	storage.KV

	// Location returns the current path.
	Location() string

	// SetLocation changes the path without raising any signal.
	SetLocation(path string)

	// Subscribe registers a handler for signal; call the result to remove it.
	Subscribe(signal notify.Signal, fn notify.Handler) func()

	// Dispatch delivers e to this surface's subscribers only.
	Dispatch(e notify.Event)
}

// =============================================================================
// BROWSER
// =============================================================================

// Browser is a set of tabs sharing one storage backend.
type Browser struct {
	backend storage.Backend
	logger  *zap.Logger

	mu      sync.RWMutex
	tabs    map[*Tab]struct{}
	watcher notify.FileWatcher
}

// NewBrowser creates a browser over backend.
func NewBrowser(backend storage.Backend, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{
		backend: backend,
		logger:  logger,
		tabs:    make(map[*Tab]struct{}),
	}
}

// Backend returns the shared storage backend.
func (b *Browser) Backend() storage.Backend {
	return b.backend
}

// OpenTab opens a new tab at location.
func (b *Browser) OpenTab(location string) *Tab {
	t := &Tab{
		browser:  b,
		bus:      notify.NewBus(),
		location: location,
	}
	b.mu.Lock()
	b.tabs[t] = struct{}{}
	b.mu.Unlock()
	return t
}

// Tabs returns the number of open tabs.
func (b *Browser) Tabs() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tabs)
}

// broadcast publishes e on every open tab except origin.
func (b *Browser) broadcast(origin *Tab, e notify.Event) {
	b.mu.RLock()
	targets := make([]*Tab, 0, len(b.tabs))
	for t := range b.tabs {
		if t != origin {
			targets = append(targets, t)
		}
	}
	b.mu.RUnlock()

	for _, t := range targets {
		t.bus.Publish(e)
	}
}

// WatchFile delivers writes to the backend file made by other processes as
// keyless storage signals on every tab. Backends without a file are ignored.
func (b *Browser) WatchFile(debounce time.Duration) error {
	path := b.backend.Path()
	if path == "" {
		return nil
	}

	w, err := notify.StartWatcher(notify.WatcherConfig{
		Path:     path,
		Debounce: debounce,
		Logger:   b.logger,
		OnChange: func() {
			b.broadcast(nil, notify.Event{Signal: notify.SignalStorage})
		},
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	old := b.watcher
	b.watcher = w
	b.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close stops the file watcher and the backend.
func (b *Browser) Close() error {
	b.mu.Lock()
	w := b.watcher
	b.watcher = nil
	b.mu.Unlock()

	if w != nil {
		if err := w.Close(); err != nil {
			b.logger.Warn("closing storage watcher", zap.Error(err))
		}
	}
	return b.backend.Close()
}

// =============================================================================
// TAB
// =============================================================================

// Tab is one surface. It implements Environment.
type Tab struct {
	browser *Browser
	bus     *notify.Bus

	mu       sync.RWMutex
	location string
}

// Location implements Environment.
func (t *Tab) Location() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.location
}

// SetLocation implements Environment.
func (t *Tab) SetLocation(path string) {
	t.mu.Lock()
	t.location = path
	t.mu.Unlock()
}

// Navigate moves the tab and raises the given navigation signal, as a link
// click (history-state-changed) or back button (popstate) would.
func (t *Tab) Navigate(path string, signal notify.Signal) {
	t.SetLocation(path)
	t.Dispatch(notify.Event{Signal: signal})
}

// Get implements storage.KV.
func (t *Tab) Get(key string) ([]byte, bool, error) {
	return t.browser.backend.Get(key)
}

// Set implements storage.KV. Other tabs receive a storage signal; this one
// does not.
func (t *Tab) Set(key string, value []byte) error {
	if err := t.browser.backend.Set(key, value); err != nil {
		return err
	}
	t.browser.broadcast(t, notify.Event{
		Signal:   notify.SignalStorage,
		Key:      key,
		NewValue: append([]byte(nil), value...),
	})
	return nil
}

// Subscribe implements Environment.
func (t *Tab) Subscribe(signal notify.Signal, fn notify.Handler) func() {
	return t.bus.Subscribe(signal, fn)
}

// Dispatch implements Environment.
func (t *Tab) Dispatch(e notify.Event) {
	t.bus.Publish(e)
}

// Close removes the tab from its browser. Subscribers stop receiving
// cross-tab signals.
func (t *Tab) Close() {
	t.browser.mu.Lock()
	delete(t.browser.tabs, t)
	t.browser.mu.Unlock()
}
