// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// =============================================================================
// FILE WATCHER INTERFACE
// =============================================================================

// FileWatcher reports changes to a storage file made by any process.
type FileWatcher interface {
	// Watch starts watching for file changes
	Watch() error

	// Close stops watching and releases resources
	Close() error
}

// WatcherConfig configures a storage file watcher.
type WatcherConfig struct {
	// Path is the storage file. Sidecar files sharing its name
	// (SQLite "-wal", "-shm", "-journal") count as the same file.
	Path string

	// Debounce is the quiet period before OnChange fires.
	Debounce time.Duration

	// PollInterval is used by the polling fallback.
	PollInterval time.Duration

	// OnChange is called once per burst of changes, on the watcher goroutine.
	OnChange func()

	Logger *zap.Logger
}

func (c *WatcherConfig) fillDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = 150 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.OnChange == nil {
		c.OnChange = func() {}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// matches reports whether name is the watched file or one of its sidecars.
func (c *WatcherConfig) matches(name string) bool {
	base := filepath.Base(c.Path)
	got := filepath.Base(name)
	return got == base || strings.HasPrefix(got, base+"-")
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// FsnotifyWatcher implements FileWatcher using fsnotify. It watches the
// file's directory, since databases are often replaced or recreated.
type FsnotifyWatcher struct {
	cfg     WatcherConfig
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	lastChange time.Time
	dirty      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFsnotifyWatcher creates a new fsnotify-based watcher
func NewFsnotifyWatcher(cfg WatcherConfig) (*FsnotifyWatcher, error) {
	cfg.fillDefaults()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FsnotifyWatcher{
		cfg:     cfg,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Watch starts watching for file changes
func (fw *FsnotifyWatcher) Watch() error {
	if err := fw.watcher.Add(filepath.Dir(fw.cfg.Path)); err != nil {
		return err
	}

	fw.wg.Add(2)
	go fw.processEvents()
	go fw.processPending()
	return nil
}

// processEvents processes file system events
func (fw *FsnotifyWatcher) processEvents() {
	defer fw.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			fw.cfg.Logger.Error("storage watcher panic", zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.cfg.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			fw.mu.Lock()
			fw.lastChange = time.Now()
			fw.dirty = true
			fw.mu.Unlock()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.cfg.Logger.Warn("storage watcher error", zap.Error(err))
		}
	}
}

// processPending fires OnChange once the file has been quiet for Debounce.
func (fw *FsnotifyWatcher) processPending() {
	defer fw.wg.Done()

	tick := fw.cfg.Debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case <-ticker.C:
			fw.mu.Lock()
			fire := fw.dirty && time.Since(fw.lastChange) >= fw.cfg.Debounce
			if fire {
				fw.dirty = false
			}
			fw.mu.Unlock()

			if fire {
				fw.cfg.OnChange()
			}
		}
	}
}

// Close stops watching and releases resources
func (fw *FsnotifyWatcher) Close() error {
	fw.cancel()
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

// fileStamp identifies one observed version of a file.
type fileStamp struct {
	modTime time.Time
	size    int64
}

// PollingWatcher implements FileWatcher using periodic stat calls. It is used
// where fsnotify is unavailable (some network filesystems, exhausted
// inotify watches).
type PollingWatcher struct {
	cfg    WatcherConfig
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	files map[string]fileStamp
}

// NewPollingWatcher creates a new polling-based watcher
func NewPollingWatcher(cfg WatcherConfig) *PollingWatcher {
	cfg.fillDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &PollingWatcher{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		files:  make(map[string]fileStamp),
	}
}

// Watch starts watching for file changes
func (pw *PollingWatcher) Watch() error {
	pw.mu.Lock()
	pw.files = pw.scan()
	pw.mu.Unlock()

	pw.wg.Add(1)
	go pw.poll()
	return nil
}

// scan stats the storage file and its sidecars.
func (pw *PollingWatcher) scan() map[string]fileStamp {
	out := make(map[string]fileStamp)
	entries, err := os.ReadDir(filepath.Dir(pw.cfg.Path))
	if err != nil {
		return out
	}
	for _, e := range entries {
		if e.IsDir() || !pw.cfg.matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[e.Name()] = fileStamp{modTime: info.ModTime(), size: info.Size()}
	}
	return out
}

// poll periodically checks for file changes
func (pw *PollingWatcher) poll() {
	defer pw.wg.Done()

	ticker := time.NewTicker(pw.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return

		case <-ticker.C:
			if pw.checkChanges() {
				pw.cfg.OnChange()
			}
		}
	}
}

// checkChanges rescans and reports whether anything differs.
func (pw *PollingWatcher) checkChanges() bool {
	current := pw.scan()

	pw.mu.Lock()
	defer pw.mu.Unlock()

	changed := len(current) != len(pw.files)
	for name, stamp := range current {
		old, ok := pw.files[name]
		if !ok || !old.modTime.Equal(stamp.modTime) || old.size != stamp.size {
			changed = true
		}
	}
	pw.files = current
	return changed
}

// Close stops watching
func (pw *PollingWatcher) Close() error {
	pw.cancel()
	pw.wg.Wait()
	return nil
}

// =============================================================================
// WATCHER FACTORY
// =============================================================================

// StartWatcher starts an fsnotify watcher, falling back to polling.
func StartWatcher(cfg WatcherConfig) (FileWatcher, error) {
	fw, err := NewFsnotifyWatcher(cfg)
	if err == nil {
		if err := fw.Watch(); err == nil {
			return fw, nil
		}
		fw.Close()
	}

	cfg.fillDefaults()
	cfg.Logger.Debug("fsnotify unavailable, polling storage file", zap.String("path", cfg.Path))

	pw := NewPollingWatcher(cfg)
	if err := pw.Watch(); err != nil {
		return nil, err
	}
	return pw, nil
}
