// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/convo/internal/util"
)

// MaxFirstMessageLength bounds ConversationEntry.FirstMessage, in runes,
// before the truncation marker is appended.
const MaxFirstMessageLength = 30

// TruncationMarker is appended to a clipped FirstMessage.
const TruncationMarker = "..."

// ConversationID identifies a conversation. It is path shaped ("/abc") and
// doubles as the storage key of the conversation's transcript.
type ConversationID string

// NewConversation is the reserved id for "no conversation yet". Nothing is
// ever persisted under it.
const NewConversation ConversationID = "/"

// NewConversationID mints a fresh, collision-resistant conversation id.
func NewConversationID() ConversationID {
	return ConversationID("/" + uuid.NewString())
}

// IsNew reports whether id is the reserved new-conversation id.
func (id ConversationID) IsNew() bool {
	return id == NewConversation || id == ""
}

// String returns the id as stored.
func (id ConversationID) String() string {
	return string(id)
}

// Short returns the id without its leading separator, for display.
func (id ConversationID) Short() string {
	return strings.TrimPrefix(string(id), "/")
}

// ConversationEntry is one row of the conversation index. Entries are written
// once, when the first message of a conversation is submitted, and never
// mutated afterwards.
type ConversationEntry struct {
	ID           ConversationID `json:"id"`
	FirstMessage string         `json:"firstMessage"`
	Timestamp    int64          `json:"timestamp"` // epoch millis
}

// NewConversationEntry builds the index entry for a conversation started with
// firstMessage at now.
func NewConversationEntry(id ConversationID, firstMessage string, now time.Time) ConversationEntry {
	return ConversationEntry{
		ID:           id,
		FirstMessage: TruncateFirstMessage(firstMessage),
		Timestamp:    now.UnixMilli(),
	}
}

// TruncateFirstMessage NFC-normalizes s and clips it to MaxFirstMessageLength
// runes, appending TruncationMarker when clipped.
func TruncateFirstMessage(s string) string {
	return util.ClipRunes(norm.NFC.String(s), MaxFirstMessageLength, TruncationMarker)
}

// Time returns the entry timestamp as a time.Time.
func (e ConversationEntry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}
