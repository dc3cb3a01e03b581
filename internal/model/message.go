// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// PARTS
// =============================================================================

// Part types produced by the chat stream. The set is open: anything the
// backend sends is kept verbatim.
const (
	PartText           = "text"
	PartReasoning      = "reasoning"
	PartSourceURL      = "source-url"
	PartSourceDocument = "source-document"
	PartStepStart      = "step-start"
	PartToolPrefix     = "tool-"
)

// Part is one typed piece of a message. It is an opaque tagged variant: the
// "type" key names the variant and the remaining keys belong to it.
type Part map[string]any

// Type returns the variant tag.
func (p Part) Type() string {
	s, _ := p["type"].(string)
	return s
}

// StringField returns the string value under key, or "".
func (p Part) StringField(key string) string {
	s, _ := p[key].(string)
	return s
}

// IsTool reports whether the part is a tool invocation.
func (p Part) IsTool() bool {
	return strings.HasPrefix(p.Type(), PartToolPrefix)
}

// ToolName returns the tool name of a tool invocation part.
func (p Part) ToolName() string {
	return strings.TrimPrefix(p.Type(), PartToolPrefix)
}

// Clone returns a shallow copy of the part.
func (p Part) Clone() Part {
	out := make(Part, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{"type": PartText, "text": text}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one chat message. Only ID and Role are interpreted by the
// session layer; Parts are owned by the chat transport.
type Message struct {
	ID       string         `json:"id"`
	Role     Role           `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewUserMessage creates a user message with a single text part.
func NewUserMessage(text string) Message {
	return Message{
		ID:    uuid.NewString(),
		Role:  RoleUser,
		Parts: []Part{TextPart(text)},
	}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type() == PartText {
			sb.WriteString(p.StringField("text"))
		}
	}
	return sb.String()
}

// PartsOfType returns the parts with the given type tag.
func (m Message) PartsOfType(typ string) []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Type() == typ {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a copy whose parts, part maps and metadata map are not
// shared with m.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = p.Clone()
		}
	}
	if m.Metadata != nil {
		out.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered message list of one conversation.
type Transcript []Message

// Clone deep-copies the transcript down to the part maps.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	for i, m := range t {
		out[i] = m.Clone()
	}
	return out
}

// IndexOf returns the position of the message with id, or -1.
func (t Transcript) IndexOf(id string) int {
	for i, m := range t {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Upsert replaces the message with the same id, or appends it.
func (t Transcript) Upsert(m Message) Transcript {
	if i := t.IndexOf(m.ID); i >= 0 {
		t[i] = m
		return t
	}
	return append(t, m)
}

// Last returns the final message, if any.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}
