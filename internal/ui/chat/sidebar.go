// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/ui/styles"
	"github.com/jeranaias/convo/internal/util"
)

// sidebar lists the conversation index, most recent first.
type sidebar struct {
	entries []model.ConversationEntry
	cursor  int
	offset  int
	err     error
}

func (s *sidebar) setEntries(entries []model.ConversationEntry, active model.ConversationID) {
	var selected model.ConversationID
	if s.cursor >= 0 && s.cursor < len(s.entries) {
		selected = s.entries[s.cursor].ID
	}
	s.entries = entries
	s.err = nil

	// keep the cursor on the same conversation, else on the open one
	s.cursor = 0
	for _, want := range []model.ConversationID{selected, active} {
		if want == "" {
			continue
		}
		if i := s.indexOf(want); i >= 0 {
			s.cursor = i
			return
		}
	}
}

func (s *sidebar) indexOf(id model.ConversationID) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *sidebar) move(delta int) {
	if len(s.entries) == 0 {
		s.cursor = 0
		return
	}
	s.cursor += delta
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor >= len(s.entries) {
		s.cursor = len(s.entries) - 1
	}
}

func (s *sidebar) selected() (model.ConversationEntry, bool) {
	if s.cursor < 0 || s.cursor >= len(s.entries) {
		return model.ConversationEntry{}, false
	}
	return s.entries[s.cursor], true
}

// view renders at most height rows of width cells.
func (s *sidebar) view(theme *styles.Theme, active model.ConversationID, width, height int, focused bool, now time.Time) string {
	if width < 4 || height < 1 {
		return ""
	}
	if s.err != nil {
		return theme.ToolError.Render(util.TruncateWidth("index unreadable", width))
	}
	if len(s.entries) == 0 {
		return theme.Placeholder.Render(util.TruncateWidth("No conversations", width))
	}

	// scroll the cursor into view
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+height {
		s.offset = s.cursor - height + 1
	}

	var rows []string
	for i := s.offset; i < len(s.entries) && len(rows) < height; i++ {
		e := s.entries[i]
		age := relativeTime(e.Time(), now)
		titleWidth := width - len(age) - 1
		title := util.PadWidth(util.TruncateWidth(util.SingleLine(e.FirstMessage), titleWidth), titleWidth)

		style := theme.SidebarItem
		switch {
		case focused && i == s.cursor:
			style = theme.SidebarSelected
		case e.ID == active:
			style = theme.SidebarActive
		}
		rows = append(rows, style.Render(title)+" "+theme.SidebarTime.Render(age))
	}
	return strings.Join(rows, "\n")
}

// relativeTime renders a compact age: "now", "5m", "3h", "2d", or a date.
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
