// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/model"
	"github.com/jeranaias/convo/internal/notify"
	"github.com/jeranaias/convo/internal/ui/styles"
)

// Controller calls always run inside commands: the controller notifies
// synchronously and the notification is sent back into the program, which
// would block if the update loop itself made the call.

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		wasStreaming := m.snap.Streaming
		m.snap = msg.Snapshot
		m.layout()
		if m.snap.Streaming && !wasStreaming {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case LivenessMsg:
		m.live = msg.State
		return m, nil

	case IndexChangedMsg:
		return m, m.loadIndex()

	case IndexLoadedMsg:
		if msg.Err != nil {
			m.sidebar.err = msg.Err
			m.logger.Warn("conversation index unreadable", zap.Error(msg.Err))
			return m, nil
		}
		m.sidebar.setEntries(msg.Entries, m.snap.ID)
		return m, nil

	case SubmitDoneMsg:
		m.busy = false
		if msg.Err != nil {
			m.logger.Debug("submission ended with error", zap.Error(msg.Err))
		}
		return m, nil

	case NavigatedMsg:
		m.sidebar.setEntries(m.sidebar.entries, m.snap.ID)
		return m, nil

	case spinner.TickMsg:
		if !m.snap.Streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Sequence(m.stop(), tea.Quit)

	case key.Matches(msg, m.keys.Stop):
		if m.snap.Streaming {
			return m, m.stop()
		}
		if m.focus == FocusSidebar {
			m.setFocus(FocusInput)
		}
		return m, nil

	case key.Matches(msg, m.keys.FocusSwitch):
		if m.focus == FocusInput {
			m.setFocus(FocusSidebar)
		} else {
			m.setFocus(FocusInput)
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.setFocus(FocusInput)
		return m, m.navigate(model.NewConversation)

	case key.Matches(msg, m.keys.Regenerate):
		return m.regenerate()

	case key.Matches(msg, m.keys.DismissError):
		if m.snap.Err == nil {
			return m, nil
		}
		return m, m.dismissError()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == FocusSidebar {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebar.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.sidebar.move(1)
	case key.Matches(msg, m.keys.Open):
		e, ok := m.sidebar.selected()
		if !ok {
			return m, nil
		}
		m.setFocus(FocusInput)
		if e.ID == m.snap.ID {
			return m, nil
		}
		return m, m.navigate(e.ID)
	}
	return m, nil
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	if f == FocusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" || m.ctrl == nil {
		return m, nil
	}
	if m.busy || m.snap.Streaming || m.snap.ReadOnly {
		// keep the draft
		return m, nil
	}
	m.input.Reset()
	m.busy = true

	ctrl, opts := m.ctrl, m.reqOpts
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return SubmitDoneMsg{Err: ctrl.Submit(context.Background(), text, opts)}
	})
}

func (m Model) regenerate() (tea.Model, tea.Cmd) {
	if m.ctrl == nil || m.busy || m.snap.Streaming || m.snap.ReadOnly {
		return m, nil
	}
	last, ok := m.snap.Messages.Last()
	if !ok {
		return m, nil
	}
	m.busy = true

	ctrl, opts := m.ctrl, m.reqOpts
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return SubmitDoneMsg{Err: ctrl.Regenerate(context.Background(), last.ID, opts)}
	})
}

func (m Model) stop() tea.Cmd {
	ctrl := m.ctrl
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		ctrl.Stop()
		return nil
	}
}

func (m Model) dismissError() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.DismissError()
		return nil
	}
}

// navigate moves the surface to id the way a link click would.
func (m Model) navigate(id model.ConversationID) tea.Cmd {
	if m.tab == nil || m.resolver == nil {
		return nil
	}
	tab, location := m.tab, m.resolver.Location(id)
	return func() tea.Msg {
		tab.Navigate(location, notify.SignalHistoryStateChanged)
		return NavigatedMsg{Location: location}
	}
}

func (m Model) loadIndex() tea.Cmd {
	index := m.index
	if index == nil {
		return nil
	}
	return func() tea.Msg {
		entries, err := index.List()
		return IndexLoadedMsg{Entries: entries, Err: err}
	}
}

// layout sizes the panes for the current window.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	bodyWidth := m.width
	if m.showSidebar() {
		bodyWidth -= m.sidebarWidth
	}
	if bodyWidth < 1 {
		bodyWidth = 1
	}

	m.viewport.Width = bodyWidth
	m.viewport.Height = m.bodyHeight()
	m.input.Width = m.width - 6
	m.renderer.SetWidth(bodyWidth - 2)
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom() || m.snap.Streaming
	var content string
	if len(m.snap.Messages) == 0 {
		content = m.theme.Placeholder.Render("Start a conversation below.")
	} else {
		content = m.renderer.Transcript(m.snap.Messages)
	}
	m.viewport.SetContent(content)
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) showSidebar() bool {
	return m.theme.GetLayoutMode() != styles.LayoutNarrow && m.width > m.sidebarWidth+20
}

// bodyHeight is what remains after the header, banner, input and status line.
func (m Model) bodyHeight() int {
	h := m.height - headerHeight - inputHeight - statusHeight
	if m.snap.Err != nil || m.snap.ReadOnly {
		h -= bannerHeight
	}
	if h < 1 {
		h = 1
	}
	return h
}
