// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across convo packages.
//
// # Key Functions
//
//   - ClipRunes: rune-safe truncation that appends a marker after the kept prefix
//   - TruncateWidth / PadWidth: display-width aware layout for terminal tables
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	preview := util.ClipRunes(firstMessage, 30, "...")
//	cell := util.PadWidth(util.TruncateWidth(title, 24), 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
