// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// These types are the persisted contract between convo and its local store:
// the JSON field names are part of the on-disk layout and must not change.
//
// # Key Types
//
//   - ConversationID: path-shaped identity of a conversation ("/" = new)
//   - ConversationEntry: one row of the conversation index (sidebar)
//   - Message: chat message with role, id and opaque typed parts
//   - Transcript: ordered messages of one conversation
//
// # Usage
//
//	id := model.NewConversationID()
//	entry := model.NewConversationEntry(id, "What is the weather?", time.Now())
//	msg := model.NewUserMessage("What is the weather?")
package model
