// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the convo command line.
//
// Commands:
//
//	convo                  Full-screen chat (needs a terminal)
//	convo chat             Line-based chat with history and slash commands
//	convo ask TEXT         Send one message and print the reply
//	convo list [QUERY]     List stored conversations, newest first
//	convo show ID          Print a stored conversation
//	convo health [--watch] Check whether the backend is reachable
//	convo models           List the models the backend offers
//	convo config ...       Show, create and edit the configuration file
//
// Global flags:
//
//	--config PATH    Use a specific configuration file
//	--backend URL    Override the backend URL
//	--path PATH      Open the conversation at PATH ("/" starts a new one)
//	--ephemeral      Keep everything in memory
//	--json           Machine-readable output where supported
//	-v, --verbose    Debug logging to stderr
//
// Output is colored only when stdout is a terminal. NO_COLOR disables color
// and FORCE_COLOR forces it.
package cli
