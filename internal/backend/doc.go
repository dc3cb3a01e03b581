// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the chat backend.
//
// The backend exposes three endpoints:
//
//   - GET  /api/health     reachability probe (2xx = up)
//   - GET  /api/configure  models and built-in tools offered to the user
//   - POST /api/chat       UI-message stream (server-sent events)
//
// # Streaming
//
// /api/chat answers with "data: {json}" frames terminated by "data: [DONE]".
// Each frame is a chunk (text-delta, tool-input-available, ...). The client
// folds chunks into an assistant model.Message and hands a snapshot to the
// caller after every chunk:
//
//	client := backend.NewClient()
//	err := client.Stream(ctx, backend.ChatRequest{
//		ID:       "/abc",
//		Messages: transcript,
//		Trigger:  backend.TriggerSubmit,
//	}, func(msg model.Message) {
//		transcript = transcript.Upsert(msg)
//	})
//
// # Error Handling
//
// Errors are *ClientError values; use IsNotRunning, IsTimeout and
// IsStreamError to classify them.
package backend
