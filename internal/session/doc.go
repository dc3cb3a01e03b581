// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session binds one surface to one conversation at a time.
//
// A Controller follows its surface's location: when the location changes
// (history-state-changed or popstate) it flushes pending writes for the old
// conversation, abandons any in-flight reply, and loads the transcript of the
// new one. Submitting the first message at the root location mints a new
// conversation id, moves the surface there and records the conversation in
// the index.
//
// # Key Types
//
//   - Controller: per-surface conversation state machine
//   - Snapshot: immutable view of the controller for rendering
//   - Throttle: trailing-edge rate limiter used for persistence
//
// # States
//
//	no-conversation --Submit--> active
//	any --navigate--> loading --> active (or no-conversation for "/")
//
// # Usage
//
//	ctrl := session.NewController(tab, resolver, client, session.DefaultConfig())
//	ctrl.OnChange(func(s session.Snapshot) { render(s) })
//	ctrl.Mount()
//	defer ctrl.Unmount()
//
//	err := ctrl.Submit(ctx, "What is the weather?", backend.Options{Model: "openai:gpt-5"})
package session
