// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat interface for convo.

The Model is a Bubble Tea model layered over one session surface. It does not
own conversation state: the session controller does, and the model renders the
snapshots it publishes.

# Layout

	┌ header: title, conversation id, reachability badge ┐
	│ sidebar (index)  │ transcript viewport             │
	│                  │                                 │
	├ error banner (when the controller reports one)     ┤
	├ input                                              ┤
	└ status line: streaming spinner, shortcuts          ┘

# Data flow

Attach bridges the outside world into the program:

  - controller changes arrive as SnapshotMsg
  - liveness changes arrive as LivenessMsg
  - storage and local-storage-change signals arrive as IndexChangedMsg and
    trigger a sidebar reload

Submitting, opening a conversation and starting a new one run as commands so
the update loop never blocks on the network or the store.

# Usage

	m := chat.New(chat.Options{...})
	p := tea.NewProgram(m, tea.WithAltScreen())
	detach := m.Attach(p)
	defer detach()
	_, err := p.Run()
*/
package chat
