// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns transcripts into terminal text. It is shared by the
// TUI and the line-oriented commands.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/ui/styles"
)

const (
	defaultWidth = 80
	minWidth     = 20

	// toolPreviewLen caps rendered tool input/output.
	toolPreviewLen = 120
)

// Options configures a Renderer.
type Options struct {
	Width    int
	Markdown bool
	Theme    *styles.Theme
}

// Renderer renders messages. It is safe for concurrent use.
type Renderer struct {
	theme    *styles.Theme
	markdown bool

	mu    sync.Mutex
	width int
	md    *glamour.TermRenderer
}

// New creates a renderer. If the markdown renderer cannot be built text is
// rendered plain.
func New(opts Options) *Renderer {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme("auto")
	}
	r := &Renderer{theme: opts.Theme, markdown: opts.Markdown}
	r.SetWidth(opts.Width)
	return r
}

// SetWidth changes the wrap width.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = defaultWidth
	}
	if width < minWidth {
		width = minWidth
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.width && (r.md != nil || !r.markdown) {
		return
	}
	r.width = width
	r.md = nil
	if !r.markdown {
		return
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.glamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.md = md
	}
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}

func (r *Renderer) glamourStyle() string {
	switch {
	case r.theme.ColorProfile == termenv.Ascii:
		return "notty"
	case r.theme.IsDark:
		return "dark"
	default:
		return "light"
	}
}

// Transcript renders every message, separated by blank lines.
func (r *Renderer) Transcript(t model.Transcript) string {
	blocks := make([]string, 0, len(t))
	for _, m := range t {
		blocks = append(blocks, r.Message(m))
	}
	return strings.Join(blocks, "\n\n")
}

// Message renders a role label followed by the message parts.
func (r *Renderer) Message(m model.Message) string {
	var sb strings.Builder
	sb.WriteString(r.label(m.Role))
	for _, p := range m.Parts {
		if s := r.Part(p); s != "" {
			sb.WriteString("\n")
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func (r *Renderer) label(role model.Role) string {
	switch role {
	case model.RoleUser:
		return r.theme.UserLabel.Render(role.DisplayName())
	case model.RoleAssistant:
		return r.theme.AssistantLabel.Render(role.DisplayName())
	default:
		return r.theme.SystemLabel.Render(role.DisplayName())
	}
}

// Part renders one part. Parts with nothing to show (step markers, data
// parts) render as "".
func (r *Renderer) Part(p model.Part) string {
	switch typ := p.Type(); {
	case typ == model.PartText:
		return r.text(p.StringField("text"))

	case typ == model.PartReasoning:
		text := strings.TrimSpace(p.StringField("text"))
		if text == "" {
			return ""
		}
		return r.theme.Reasoning.Width(r.Width()).Render("Thinking: " + text)

	case typ == model.PartSourceURL:
		title := p.StringField("title")
		if title == "" {
			title = p.StringField("url")
		}
		return "  ↳ " + r.theme.Source.Render(title) + " " + p.StringField("url")

	case typ == model.PartSourceDocument:
		title := p.StringField("title")
		if fn := p.StringField("filename"); fn != "" {
			title += " (" + fn + ")"
		}
		return "  ↳ " + r.theme.Source.Render(title)

	case typ == "file":
		return fmt.Sprintf("  [file %s] %s", p.StringField("mediaType"), p.StringField("url"))

	case p.IsTool():
		return r.tool(p)
	}
	return ""
}

func (r *Renderer) text(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	r.mu.Lock()
	md, width := r.md, r.width
	r.mu.Unlock()

	if md != nil {
		if out, err := md.Render(s); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func (r *Renderer) tool(p model.Part) string {
	name := p.ToolName()
	state := p.StringField("state")

	line := fmt.Sprintf("  ⚙ %s", name)
	if state != "" {
		line += " [" + state + "]"
	}
	if in, ok := p["input"]; ok && in != nil {
		line += " " + preview(in)
	}
	if errText := p.StringField("errorText"); errText != "" {
		return r.theme.ToolError.Render(line + "\n    " + errText)
	}
	out := r.theme.ToolCall.Render(line)
	if o, ok := p["output"]; ok && o != nil {
		out += "\n    → " + preview(o)
	}
	return out
}

func preview(v any) string {
	var s string
	if str, ok := v.(string); ok {
		s = str
	} else if data, err := json.Marshal(v); err == nil {
		s = string(data)
	} else {
		s = fmt.Sprint(v)
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > toolPreviewLen {
		s = string(r[:toolPreviewLen]) + "…"
	}
	return s
}
