// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/ui/styles"
)

func plain() *Renderer {
	return New(Options{Width: 60, Theme: styles.NewTheme("dark")})
}

func TestMessage_PlainText(t *testing.T) {
	out := plain().Message(model.Message{
		ID:    "u1",
		Role:  model.RoleUser,
		Parts: []model.Part{model.TextPart("hello world")},
	})
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "hello world")
}

func TestMessage_SkipsEmptyAndUnknownParts(t *testing.T) {
	out := plain().Message(model.Message{
		Role: model.RoleAssistant,
		Parts: []model.Part{
			{"type": model.PartStepStart},
			{"type": "data-weather", "data": map[string]any{"t": 20}},
			model.TextPart("  "),
		},
	})
	assert.Equal(t, 1, len(strings.Split(out, "\n")), out)
}

func TestPart_Sources(t *testing.T) {
	r := plain()
	out := r.Part(model.Part{"type": model.PartSourceURL, "url": "https://go.dev", "title": "Go"})
	assert.Contains(t, out, "Go")
	assert.Contains(t, out, "https://go.dev")

	out = r.Part(model.Part{"type": model.PartSourceURL, "url": "https://go.dev"})
	assert.Contains(t, out, "https://go.dev")

	out = r.Part(model.Part{"type": model.PartSourceDocument, "title": "Design", "filename": "design.pdf"})
	assert.Contains(t, out, "Design")
	assert.Contains(t, out, "design.pdf")
}

func TestPart_Tool(t *testing.T) {
	r := plain()
	out := r.Part(model.Part{
		"type":   "tool-search",
		"state":  "output-available",
		"input":  map[string]any{"q": "golang"},
		"output": "3 results",
	})
	assert.Contains(t, out, "search")
	assert.Contains(t, out, "output-available")
	assert.Contains(t, out, `{"q":"golang"}`)
	assert.Contains(t, out, "3 results")

	out = r.Part(model.Part{"type": "tool-search", "state": "output-error", "errorText": "quota"})
	assert.Contains(t, out, "quota")
}

func TestPart_Reasoning(t *testing.T) {
	out := plain().Part(model.Part{"type": model.PartReasoning, "text": "considering"})
	assert.Contains(t, out, "Thinking")
	assert.Contains(t, out, "considering")
}

func TestPreview_Truncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := preview(long)
	assert.Equal(t, toolPreviewLen+1, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestMarkdown(t *testing.T) {
	r := New(Options{Width: 60, Markdown: true, Theme: styles.NewTheme("dark")})
	out := r.Part(model.TextPart("# Title\n\nsome **bold** text"))
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
}

func TestTranscript(t *testing.T) {
	out := plain().Transcript(model.Transcript{
		model.NewUserMessage("question"),
		{ID: "a", Role: model.RoleAssistant, Parts: []model.Part{model.TextPart("answer")}},
	})
	assert.Contains(t, out, "question")
	assert.Contains(t, out, "answer")
	assert.Contains(t, out, "\n\n")
}
