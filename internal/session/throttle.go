// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle runs fn at most once per interval. The first Trigger in a quiet
// period runs fn immediately; triggers inside the interval collapse into one
// trailing run when the interval elapses, so the last state is always
// written. fn never runs concurrently with itself.
type Throttle struct {
	fn      func()
	limiter *rate.Limiter

	mu      sync.Mutex
	timer   *time.Timer
	dirty   bool
	stopped bool

	runMu sync.Mutex
}

// NewThrottle creates a throttle for fn.
func NewThrottle(interval time.Duration, fn func()) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{
		fn:      fn,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Trigger requests a run.
func (t *Throttle) Trigger() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.dirty = true
	if t.timer != nil {
		// trailing run already scheduled
		t.mu.Unlock()
		return
	}

	delay := t.limiter.Reserve().Delay()
	if delay <= 0 {
		t.mu.Unlock()
		t.run()
		return
	}
	t.timer = time.AfterFunc(delay, t.fire)
	t.mu.Unlock()
}

func (t *Throttle) fire() {
	t.mu.Lock()
	t.timer = nil
	t.mu.Unlock()
	t.run()
}

// Flush runs fn now if a run is pending and cancels the scheduled one.
func (t *Throttle) Flush() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
	t.run()
}

// Pending reports whether a run has been requested but not yet done.
func (t *Throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

// Stop cancels any scheduled run and ignores later triggers.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.dirty = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttle) run() {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return
	}
	t.dirty = false
	t.mu.Unlock()

	t.fn()
}
