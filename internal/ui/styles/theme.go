// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	// Sidebar
	Sidebar         lipgloss.Style
	SidebarFocused  lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarActive   lipgloss.Style
	SidebarTime     lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	Reasoning      lipgloss.Style
	Source         lipgloss.Style
	ToolCall       lipgloss.Style
	ToolError      lipgloss.Style
	Placeholder    lipgloss.Style

	// Input and status
	Input        lipgloss.Style
	InputFocused lipgloss.Style
	StatusBar    lipgloss.Style
	ErrorBanner  lipgloss.Style
	ReadOnly     lipgloss.Style
	Streaming    lipgloss.Style

	// Reachability badge
	BadgeUp   lipgloss.Style
	BadgeDown lipgloss.Style

	// ShortcutKey / ShortcutDesc render the help line
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates a theme. name is "dark", "light" or "auto" (detect).
func NewTheme(name string) *Theme {
	t := &Theme{ColorProfile: termenv.ColorProfile()}

	switch strings.ToLower(name) {
	case "light":
		t.IsDark = false
		lipgloss.SetHasDarkBackground(false)
	case "dark":
		t.IsDark = true
		lipgloss.SetHasDarkBackground(true)
	default:
		t.IsDark = termenv.HasDarkBackground()
	}

	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarFocused = t.Sidebar.
		BorderForeground(Cyan)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.SidebarSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SurfaceBright).
		Bold(true)
	t.SidebarActive = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.SidebarTime = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.SystemLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)
	t.Reasoning = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.Source = lipgloss.NewStyle().
		Foreground(LinkColor).
		Underline(true)
	t.ToolCall = lipgloss.NewStyle().
		Foreground(Emerald)
	t.ToolError = lipgloss.NewStyle().
		Foreground(Rose)
	t.Placeholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.InputFocused = t.Input.
		BorderForeground(Purple)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.ErrorBanner = lipgloss.NewStyle().
		Foreground(Rose).
		Background(RoseDeep).
		Bold(true).
		Padding(0, 1)
	t.ReadOnly = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)
	t.Streaming = lipgloss.NewStyle().
		Foreground(Amber)

	t.BadgeUp = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)
	t.BadgeDown = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, sidebar hidden
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
