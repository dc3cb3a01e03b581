// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/backend"
	"github.com/jeranaias/convo/internal/env"
	"github.com/jeranaias/convo/internal/identity"
	"github.com/jeranaias/convo/internal/liveness"
	"github.com/jeranaias/convo/internal/notify"
	"github.com/jeranaias/convo/internal/session"
	"github.com/jeranaias/convo/internal/storage"
	"github.com/jeranaias/convo/internal/ui/render"
	"github.com/jeranaias/convo/internal/ui/styles"
)

const defaultSidebarWidth = 28

// Focus is the pane receiving key input.
type Focus int

const (
	FocusInput Focus = iota
	FocusSidebar
)

// Options configures New.
type Options struct {
	Controller *session.Controller
	Tab        *env.Tab
	Index      *storage.IndexStore
	Resolver   *identity.Resolver

	// Monitor is optional; without it the badge is hidden.
	Monitor *liveness.Monitor

	RequestOptions backend.Options
	Renderer       *render.Renderer
	Theme          *styles.Theme
	SidebarWidth   int
	Logger         *zap.Logger

	// Now is the clock for sidebar ages.
	Now func() time.Time
}

// Model is the chat interface.
type Model struct {
	ctrl     *session.Controller
	tab      *env.Tab
	index    *storage.IndexStore
	resolver *identity.Resolver
	monitor  *liveness.Monitor
	reqOpts  backend.Options
	renderer *render.Renderer
	theme    *styles.Theme
	logger   *zap.Logger
	now      func() time.Time
	keys     KeyMap

	snap     session.Snapshot
	live     liveness.State
	sidebar  sidebar
	focus    Focus
	busy     bool
	quitting bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width        int
	height       int
	sidebarWidth int
	ready        bool
}

// New creates the chat model.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme("auto")
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.Options{Theme: opts.Theme})
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SidebarWidth <= 0 {
		opts.SidebarWidth = defaultSidebarWidth
	}

	ti := textinput.New()
	ti.Placeholder = "Send a message..."
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Streaming

	m := Model{
		ctrl:         opts.Controller,
		tab:          opts.Tab,
		index:        opts.Index,
		resolver:     opts.Resolver,
		monitor:      opts.Monitor,
		reqOpts:      opts.RequestOptions,
		renderer:     opts.Renderer,
		theme:        opts.Theme,
		logger:       opts.Logger,
		now:          opts.Now,
		keys:         DefaultKeyMap(),
		input:        ti,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		sidebarWidth: opts.SidebarWidth,
		live:         liveness.State{Reachable: true},
	}
	if m.ctrl != nil {
		m.snap = m.ctrl.Snapshot()
		m.busy = m.snap.Streaming
	}
	if m.monitor != nil {
		m.live = m.monitor.State()
	}
	return m
}

// Init loads the sidebar and starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadIndex())
}

// Attach forwards controller, liveness and storage notifications to p. The
// returned function removes the storage subscriptions.
func (m Model) Attach(p *tea.Program) func() {
	if m.ctrl != nil {
		m.ctrl.OnChange(func(s session.Snapshot) {
			p.Send(SnapshotMsg{Snapshot: s})
		})
	}
	if m.monitor != nil {
		m.monitor.OnChange(func(s liveness.State) {
			p.Send(LivenessMsg{State: s})
		})
	}
	if m.tab == nil {
		return func() {}
	}

	reload := func(notify.Event) { p.Send(IndexChangedMsg{}) }
	unsubs := []func(){
		m.tab.Subscribe(notify.SignalStorage, reload),
		m.tab.Subscribe(notify.SignalLocalStorageChange, reload),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Snapshot returns the last controller state the model rendered.
func (m Model) Snapshot() session.Snapshot {
	return m.snap
}

// Focused returns the pane receiving key input.
func (m Model) Focused() Focus {
	return m.focus
}

// Busy reports whether a submission is in flight.
func (m Model) Busy() bool {
	return m.busy
}
