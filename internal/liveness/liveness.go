// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package liveness tracks whether the chat backend is reachable.
//
// A Monitor probes the backend in a strictly sequential loop: probe, record
// the outcome, wait, repeat. The wait starts at Config.BaseDelay and doubles
// after every probe, successful or not, up to Config.MaxDelay. The backend
// is reported unreachable once Config.FailureThreshold probes in a row fail,
// and reachable again after the first success.
package liveness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober checks backend health. A nil error means healthy.
type Prober interface {
	Health(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Health implements Prober.
func (f ProberFunc) Health(ctx context.Context) error { return f(ctx) }

// Config controls probing cadence.
type Config struct {
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	ProbeTimeout     time.Duration
	FailureThreshold int
}

// DefaultConfig returns 5s base delay, 5m ceiling, 5s probe timeout and a
// threshold of two failures.
func DefaultConfig() Config {
	return Config{
		BaseDelay:        5 * time.Second,
		MaxDelay:         5 * time.Minute,
		ProbeTimeout:     5 * time.Second,
		FailureThreshold: 2,
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.FailureThreshold < 1 {
		c.FailureThreshold = d.FailureThreshold
	}
}

// State is the observable reachability.
type State struct {
	Reachable           bool
	ConsecutiveFailures int
	// Backoff is the delay before the next probe.
	Backoff time.Duration
}

// BackoffMs returns Backoff in whole milliseconds.
func (s State) BackoffMs() int64 {
	return s.Backoff.Milliseconds()
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor runs the probe loop. It is safe for concurrent use.
type Monitor struct {
	cfg    Config
	logger *zap.Logger
	sleep  SleepFunc

	mu       sync.Mutex
	prober   Prober
	state    State
	cancel   context.CancelFunc
	done     chan struct{}
	gen      uint64
	onChange []func(State)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSleep replaces the wait between probes (tests use an instant sleep).
func WithSleep(fn SleepFunc) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.sleep = fn
		}
	}
}

// NewMonitor creates a monitor. A nil prober means the backend is assumed
// always reachable and no loop ever runs.
func NewMonitor(prober Prober, cfg Config, opts ...Option) *Monitor {
	cfg.fillDefaults()
	m := &Monitor{
		cfg:    cfg,
		logger: zap.NewNop(),
		sleep:  sleepContext,
		prober: prober,
		state:  State{Reachable: true, Backoff: cfg.BaseDelay},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers fn to run after every state change.
func (m *Monitor) OnChange(fn func(State)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Running reports whether the probe loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done != nil
}

// Start begins probing. Any previous loop is stopped first and the backoff
// resets to the base delay. With a nil prober the state is simply reachable.
func (m *Monitor) Start(ctx context.Context) {
	m.Stop()

	m.mu.Lock()
	m.state = State{Reachable: true, Backoff: m.cfg.BaseDelay}
	if m.prober == nil {
		m.mu.Unlock()
		m.notify()
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.gen++
	gen := m.gen
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done
	prober := m.prober
	m.mu.Unlock()

	go m.run(loopCtx, gen, prober, done)
}

// Restart swaps the prober (nil disables probing) and starts over.
func (m *Monitor) Restart(ctx context.Context, prober Prober) {
	m.Stop()
	m.mu.Lock()
	m.prober = prober
	m.mu.Unlock()
	m.Start(ctx)
}

// Stop cancels the pending wait and any in-flight probe and waits for the
// loop to exit. A probe result arriving after Stop is discarded. The backoff
// resets to the base delay.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.gen++
	m.state.Backoff = m.cfg.BaseDelay
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Monitor) run(ctx context.Context, gen uint64, prober Prober, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("liveness loop panic", zap.Any("panic", r))
		}
	}()

	for {
		if _, ok := m.cycle(ctx, gen, prober); !ok {
			return
		}

		m.mu.Lock()
		wait := m.state.Backoff
		m.mu.Unlock()

		if err := m.sleep(ctx, wait); err != nil {
			return
		}

		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return
		}
		m.state.Backoff = nextBackoff(m.state.Backoff, m.cfg.MaxDelay)
		m.mu.Unlock()
		m.notify()
	}
}

// Probe runs a single probe against the current prober and records the
// outcome, without touching the backoff. It returns the new state.
func (m *Monitor) Probe(ctx context.Context) State {
	m.mu.Lock()
	prober, gen := m.prober, m.gen
	m.mu.Unlock()

	if prober == nil {
		return m.State()
	}
	s, _ := m.cycle(ctx, gen, prober)
	return s
}

// cycle probes once and applies the result unless the monitor moved on to
// another generation meanwhile. ok is false when the result was discarded.
func (m *Monitor) cycle(ctx context.Context, gen uint64, prober Prober) (State, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	err := prober.Health(probeCtx)
	cancel()

	m.mu.Lock()
	if m.gen != gen || ctx.Err() != nil {
		s := m.state
		m.mu.Unlock()
		return s, false
	}

	was := m.state.Reachable
	if err == nil {
		m.state.ConsecutiveFailures = 0
		m.state.Reachable = true
	} else {
		m.state.ConsecutiveFailures++
		if m.state.ConsecutiveFailures >= m.cfg.FailureThreshold {
			m.state.Reachable = false
		}
	}
	s := m.state
	m.mu.Unlock()

	switch {
	case was && !s.Reachable:
		m.logger.Warn("backend unreachable", zap.Int("failures", s.ConsecutiveFailures), zap.Error(err))
	case !was && s.Reachable:
		m.logger.Info("backend reachable again")
	case err != nil:
		m.logger.Debug("health probe failed", zap.Int("failures", s.ConsecutiveFailures), zap.Error(err))
	}

	m.notify()
	return s, true
}

func (m *Monitor) notify() {
	m.mu.Lock()
	s := m.state
	fns := append([]func(State){}, m.onChange...)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max || next <= 0 {
		return max
	}
	return next
}
