// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for convo.
//
// Persistence is modelled as a flat, string-keyed "local storage": every
// transcript lives under its conversation id, and the conversation index
// lives under the single key "conversationIds". Values are JSON.
//
// # Key Types
//
//   - KV: the two-operation surface the stores need (Get/Set)
//   - Backend: a KV that can also enumerate, remove and close
//   - TranscriptStore: load/save transcripts by conversation id
//   - IndexStore: the most-recent-first list of conversation entries
//
// # Backends
//
//   - memory: in-process map, lost on exit
//   - bolt: go.etcd.io/bbolt file, opened per operation so several convo
//     processes can share it
//   - sqlite: modernc.org/sqlite file in WAL mode
//
// # Usage
//
//	backend, err := storage.Open("bolt", "~/.convo/storage.db")
//	transcripts := storage.NewTranscriptStore(backend)
//	index := storage.NewIndexStore(backend)
//
//	entries, err := index.List()
//	msgs, err := transcripts.Load(entries[0].ID)
//
// Nothing is ever evicted: conversations accumulate until the user removes
// the storage file.
package storage
