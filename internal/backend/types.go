// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "github.com/jeranaias/convo/internal/model"

// Trigger says why a chat request was sent.
type Trigger string

const (
	TriggerSubmit     Trigger = "submit-message"
	TriggerRegenerate Trigger = "regenerate-message"
)

// Options is the per-request option bag merged into the chat body.
type Options struct {
	Model        string
	WebSearch    bool
	BuiltinTools []string
}

// ChatRequest is one POST /api/chat.
type ChatRequest struct {
	// ID is the conversation id.
	ID        string
	Messages  []model.Message
	Trigger   Trigger
	MessageID string // regenerate target, if any
	Options   Options
}

// chatBody is the fixed part of the request body.
type chatBody struct {
	ID        string          `json:"id"`
	Messages  []model.Message `json:"messages"`
	Trigger   Trigger         `json:"trigger"`
	MessageID string          `json:"messageId,omitempty"`
}

// ModelOption is one selectable model.
type ModelOption struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	BuiltinTools []string `json:"builtin_tools,omitempty"`
}

// ToolOption is one built-in tool the backend can enable.
type ToolOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FrontendConfig is the response of GET /api/configure.
type FrontendConfig struct {
	Models       []ModelOption `json:"models"`
	BuiltinTools []ToolOption  `json:"builtinTools"`
}

// FindModel returns the model with id.
func (f *FrontendConfig) FindModel(id string) (ModelOption, bool) {
	if f == nil {
		return ModelOption{}, false
	}
	for _, m := range f.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelOption{}, false
}

// DefaultModel returns the first model id, or "".
func (f *FrontendConfig) DefaultModel() string {
	if f == nil || len(f.Models) == 0 {
		return ""
	}
	return f.Models[0].ID
}
