// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the convo TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection; the "light" and "dark" themes pin the choice.

# Color System (colors.go)

  - Purple - Assistant messages and selections
  - Cyan - Brand color, user messages, the focused pane
  - Emerald - Reachable backend, tool success
  - Amber - Streaming, warnings, read-only conversations
  - Rose - Errors and the unreachable badge

# Theme (theme.go)

A Theme bundles the styles for every pane:

	theme := styles.NewTheme("auto")
	theme.SetSize(width, height)
	sidebar := theme.Sidebar.Width(28).Render(list)
*/
package styles
