// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import "sync"

// Signal names a change notification.
type Signal string

const (
	SignalStorage             Signal = "storage"
	SignalLocalStorageChange  Signal = "local-storage-change"
	SignalHistoryStateChanged Signal = "history-state-changed"
	SignalPopState            Signal = "popstate"
)

// Event is one delivered signal.
type Event struct {
	Signal Signal

	// Key and NewValue are set for storage events when known.
	Key      string
	NewValue []byte
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id uint64
	fn Handler
}

// Bus is a synchronous, in-process event bus. Handlers run on the
// publishing goroutine, in subscription order, outside the bus lock so they
// may subscribe, unsubscribe or publish themselves.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Signal][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Signal][]subscription)}
}

// Subscribe registers fn for signal and returns a function that removes it.
// The returned function is idempotent.
func (b *Bus) Subscribe(signal Signal, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[signal] = append(b.subs[signal], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(signal, id) })
	}
}

func (b *Bus) remove(signal Signal, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[signal]
	for i, s := range subs {
		if s.id == id {
			// copy so in-flight Publish snapshots stay intact
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, signal)
			} else {
				b.subs[signal] = next
			}
			return
		}
	}
}

// Publish delivers e to every handler subscribed to e.Signal.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subs[e.Signal]
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(e)
	}
}

// Subscribers returns the number of handlers for signal.
func (b *Bus) Subscribers(signal Signal) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[signal])
}
