// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify carries change signals between surfaces.
//
// Four signals exist:
//
//   - SignalStorage: storage changed in another surface or process. Raised
//     automatically, never by the writer itself.
//   - SignalLocalStorageChange: the conversation index changed in this surface.
//   - SignalHistoryStateChanged: this surface navigated without reloading.
//   - SignalPopState: back/forward navigation.
//
// Signals are hints to re-read, never payloads to trust. An Event's Key may
// be empty when the origin cannot tell which key changed.
//
// # Usage
//
//	bus := notify.NewBus()
//	unsubscribe := bus.Subscribe(notify.SignalStorage, func(e notify.Event) {
//		refreshSidebar()
//	})
//	defer unsubscribe()
//
// A FileWatcher turns writes to the storage file by other processes into
// callbacks, debounced.
package notify
