// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/convo/internal/liveness"
	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/session"
)

// SnapshotMsg carries a controller change.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// LivenessMsg carries a reachability change.
type LivenessMsg struct {
	State liveness.State
}

// IndexChangedMsg asks for a sidebar reload.
type IndexChangedMsg struct{}

// IndexLoadedMsg is the result of a sidebar reload.
type IndexLoadedMsg struct {
	Entries []model.ConversationEntry
	Err     error
}

// SubmitDoneMsg is sent when a submission or regeneration has finished
// streaming.
type SubmitDoneMsg struct {
	Err error
}

// NavigatedMsg is sent after the surface moved to a new location.
type NavigatedMsg struct {
	Location string
}
