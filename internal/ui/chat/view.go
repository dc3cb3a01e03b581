// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/convo/internal/util"
)

const (
	headerHeight = 1
	bannerHeight = 1
	inputHeight  = 3 // one line plus border
	statusHeight = 1
)

// View renders the interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.bodyView())
	b.WriteString("\n")
	if banner := m.bannerView(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}
	b.WriteString(m.inputView())
	b.WriteString("\n")
	b.WriteString(m.statusView())
	return b.String()
}

func (m Model) headerView() string {
	title := m.theme.HeaderTitle.Render("convo")

	id := "new conversation"
	if !m.snap.ID.IsNew() && m.snap.ID != "" {
		id = m.snap.ID.Short()
	}

	badge := ""
	if m.monitor != nil {
		if m.live.Reachable {
			badge = m.theme.BadgeUp.Render("● online")
		} else {
			badge = m.theme.BadgeDown.Render(fmt.Sprintf("● offline (retry %s)", m.live.Backoff))
		}
	}

	left := title + "  " + id
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(badge) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + badge)
}

func (m Model) bodyView() string {
	h := m.bodyHeight()
	chat := lipgloss.NewStyle().Width(m.viewport.Width).Height(h).Render(m.viewport.View())
	if !m.showSidebar() {
		return chat
	}

	style := m.theme.Sidebar
	if m.focus == FocusSidebar {
		style = m.theme.SidebarFocused
	}
	// border and padding take two cells each side
	innerW := m.sidebarWidth - 4
	innerH := h - 2
	list := m.sidebar.view(m.theme, m.snap.ID, innerW, innerH, m.focus == FocusSidebar, m.now())
	side := style.Width(m.sidebarWidth - 2).Height(innerH).Render(list)

	return lipgloss.JoinHorizontal(lipgloss.Top, side, chat)
}

func (m Model) bannerView() string {
	switch {
	case m.snap.ReadOnly:
		return m.theme.ReadOnly.Render(util.TruncateWidth(
			"This conversation could not be loaded and is read-only. Ctrl+N starts a new one.", m.width))
	case m.snap.Err != nil:
		msg := util.SingleLine(m.snap.Err.Error())
		return m.theme.ErrorBanner.Width(m.width).Render(
			util.TruncateWidth("Error: "+msg+"  (Ctrl+E to dismiss)", m.width-2))
	}
	return ""
}

func (m Model) inputView() string {
	style := m.theme.Input
	if m.focus == FocusInput {
		style = m.theme.InputFocused
	}
	return style.Width(m.width - 2).Render(m.input.View())
}

func (m Model) statusView() string {
	var left string
	if m.snap.Streaming {
		left = m.spinner.View() + m.theme.Streaming.Render(" streaming, Esc to stop")
	} else {
		left = string(m.snap.State)
	}

	var help []string
	for _, k := range m.keys.ShortHelp() {
		h := k.Help()
		help = append(help, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	right := strings.Join(help, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		right = ""
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
