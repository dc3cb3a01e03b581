// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires configuration, logging, storage, the backend client and
// the liveness monitor into one process-wide instance. Surfaces (the TUI, the
// REPL, one-shot commands) each open their own tab on it.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/convo/internal/backend"
	"github.com/jeranaias/convo/internal/config"
	"github.com/jeranaias/convo/internal/env"
	"github.com/jeranaias/convo/internal/identity"
	"github.com/jeranaias/convo/internal/liveness"
	"github.com/jeranaias/convo/internal/logging"
	"github.com/jeranaias/convo/internal/session"
	"github.com/jeranaias/convo/internal/storage"
)

// watchDebounce coalesces bursts of writes from other processes.
const watchDebounce = 150 * time.Millisecond

// Options configures New.
type Options struct {
	Config *config.Config

	// Ephemeral keeps everything in memory regardless of the storage driver.
	Ephemeral bool

	// Logger overrides the logger built from the config.
	Logger *logging.Logger
}

// App is the composition root.
type App struct {
	Config   *config.Config
	Logger   *logging.Logger
	Browser  *env.Browser
	Resolver *identity.Resolver
	Client   *backend.Client
	Monitor  *liveness.Monitor

	// Index and Transcripts read the shared store directly. Writes go
	// through a surface so other surfaces are notified.
	Index       *storage.IndexStore
	Transcripts *storage.TranscriptStore

	ownsLogger bool
}

// New builds the application from opts.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	a := &App{Config: cfg, Logger: opts.Logger}
	if a.Logger == nil {
		lopts, err := logging.OptionsFromConfig(cfg.Logging)
		if err != nil {
			return nil, err
		}
		l, err := logging.New(lopts)
		if err != nil {
			return nil, fmt.Errorf("failed to set up logging: %w", err)
		}
		a.Logger = l
		a.ownsLogger = true
	}
	logger := a.Logger.Logger

	backendStore, err := openStorage(cfg.Storage, opts.Ephemeral)
	if err != nil {
		a.closeLogger()
		return nil, err
	}
	logger.Debug("storage opened",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("path", backendStore.Path()))

	a.Browser = env.NewBrowser(backendStore, logger.Named("env"))
	if cfg.Storage.Watch && backendStore.Path() != "" {
		if err := a.Browser.WatchFile(watchDebounce); err != nil {
			// other processes' writes only show up after a reload
			logger.Warn("storage watch unavailable", zap.Error(err))
		}
	}

	a.Resolver = identity.NewResolver(cfg.Location.BasePath)
	a.Index = storage.NewIndexStore(backendStore)
	a.Transcripts = storage.NewTranscriptStore(backendStore)

	a.Client = backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:       cfg.Backend.URL,
		HealthTimeout: cfg.Liveness.Timeout(),
		Logger:        logger.Named("backend"),
	})

	a.Monitor = liveness.NewMonitor(a.prober(), liveness.Config{
		BaseDelay:        cfg.Liveness.BaseDelay(),
		MaxDelay:         cfg.Liveness.MaxDelay(),
		ProbeTimeout:     cfg.Liveness.Timeout(),
		FailureThreshold: cfg.Liveness.FailureThreshold,
	}, liveness.WithLogger(logger.Named("liveness")))

	return a, nil
}

func openStorage(cfg config.StorageConfig, ephemeral bool) (storage.Backend, error) {
	if ephemeral || cfg.Driver == config.DriverMemory {
		return storage.NewMemoryBackend(), nil
	}
	path, err := cfg.ResolvedPath()
	if err != nil {
		return nil, err
	}
	b, err := storage.Open(cfg.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage at %s: %w", cfg.Driver, path, err)
	}
	return b, nil
}

// prober returns nil for the bundled backend, which is served alongside the
// client and needs no probing.
func (a *App) prober() liveness.Prober {
	if a.Client.IsDefaultLocation() {
		return nil
	}
	return a.Client
}

// StartLiveness begins reachability probing.
func (a *App) StartLiveness(ctx context.Context) {
	a.Monitor.Start(ctx)
}

// RequestOptions returns the per-request option bag from the config.
func (a *App) RequestOptions() backend.Options {
	return backend.Options{
		Model:        a.Config.Backend.DefaultModel,
		WebSearch:    a.Config.Backend.WebSearch,
		BuiltinTools: append([]string(nil), a.Config.Backend.BuiltinTools...),
	}
}

// =============================================================================
// SURFACES
// =============================================================================

// Surface is one mounted chat view: a tab plus its controller.
type Surface struct {
	Tab        *env.Tab
	Controller *session.Controller
}

// OpenSurface opens a tab at location (the configured start path when empty)
// and mounts a controller on it.
func (a *App) OpenSurface(location string) *Surface {
	if location == "" {
		location = a.Config.Location.StartPath
	}
	tab := a.Browser.OpenTab(location)

	var transport session.Transport = a.Client
	if d := a.Config.Backend.Timeout(); d > 0 {
		transport = timeoutTransport{next: a.Client, timeout: d}
	}

	ctrl := session.NewController(tab, a.Resolver, transport, session.Config{
		PersistInterval: a.Config.Storage.PersistInterval(),
		Logger:          a.Logger.Named("session"),
	})
	ctrl.Mount()
	return &Surface{Tab: tab, Controller: ctrl}
}

// Close unmounts the controller and closes the tab.
func (s *Surface) Close() {
	s.Controller.Unmount()
	s.Tab.Close()
}

// timeoutTransport bounds a whole reply.
type timeoutTransport struct {
	next    session.Transport
	timeout time.Duration
}

func (t timeoutTransport) Stream(ctx context.Context, req backend.ChatRequest, emit backend.EmitFunc) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	err := t.next.Stream(ctx, req, emit)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return backend.ErrTimeout
	}
	return err
}

// Close stops probing, the storage watcher and the store.
func (a *App) Close() error {
	a.Monitor.Stop()
	err := a.Browser.Close()
	a.closeLogger()
	return err
}

func (a *App) closeLogger() {
	if a.ownsLogger {
		_ = a.Logger.Close()
	}
}
