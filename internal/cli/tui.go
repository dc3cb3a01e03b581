// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/ui/chat"
	"github.com/jeranaias/convo/internal/ui/render"
	"github.com/jeranaias/convo/internal/ui/styles"
)

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	surface := a.OpenSurface(opts.location)
	defer surface.Close()

	cfg := a.Config
	theme := styles.NewTheme(cfg.UI.Theme)
	width, height := GetTerminalSize()
	theme.SetSize(width, height)

	m := chat.New(chat.Options{
		Controller:     surface.Controller,
		Tab:            surface.Tab,
		Index:          a.Index,
		Resolver:       a.Resolver,
		Monitor:        a.Monitor,
		RequestOptions: a.RequestOptions(),
		Renderer: render.New(render.Options{
			Width:    width - cfg.UI.SidebarWidth,
			Markdown: cfg.UI.Markdown,
			Theme:    theme,
		}),
		Theme:        theme,
		SidebarWidth: cfg.UI.SidebarWidth,
		Logger:       a.Logger.Named("tui"),
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	detach := m.Attach(p)
	defer detach()

	a.StartLiveness(ctx)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		a.Logger.Error("TUI run error", zap.Error(err))
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
