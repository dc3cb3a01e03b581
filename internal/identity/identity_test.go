// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"testing"

	"github.com/jeranaias/convo/internal/model"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		location string
		want     model.ConversationID
	}{
		{"root no base", "", "/", model.NewConversation},
		{"empty no base", "", "", model.NewConversation},
		{"id no base", "", "/abc123", "/abc123"},
		{"trailing slash", "", "/abc123/", "/abc123"},
		{"base only", "/app", "/app", model.NewConversation},
		{"base with slash", "/app", "/app/", model.NewConversation},
		{"base plus id", "/app", "/app/abc123", "/abc123"},
		{"base prefix not a segment", "/app", "/apple", "/apple"},
		{"outside base", "/app", "/other/x", "/other/x"},
		{"base normalized", "app/", "/app/x", "/x"},
		{"full url", "/app", "http://localhost:5173/app/xyz?q=1#top", "/xyz"},
		{"query on path", "", "/abc?draft=1", "/abc"},
		{"nested id", "", "/a/b", "/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.base)
			if got := r.Resolve(tt.location); got != tt.want {
				t.Errorf("Resolve(%q) with base %q = %q, want %q", tt.location, tt.base, got, tt.want)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		base string
		id   model.ConversationID
		want string
	}{
		{"", model.NewConversation, "/"},
		{"/app", model.NewConversation, "/app"},
		{"", "/abc", "/abc"},
		{"/app", "/abc", "/app/abc"},
		{"/", "/abc", "/abc"},
	}

	for _, tt := range tests {
		r := NewResolver(tt.base)
		if got := r.Location(tt.id); got != tt.want {
			t.Errorf("Location(%q) with base %q = %q, want %q", tt.id, tt.base, got, tt.want)
		}
	}
}

func TestLocationRoundTrip(t *testing.T) {
	for _, base := range []string{"", "/app", "/deep/base"} {
		r := NewResolver(base)
		id := model.NewConversationID()
		if got := r.Resolve(r.Location(id)); got != id {
			t.Errorf("base %q: round trip %q -> %q", base, id, got)
		}
		if got := r.Resolve(r.Location(model.NewConversation)); got != model.NewConversation {
			t.Errorf("base %q: reserved id round trip -> %q", base, got)
		}
	}
}
