// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package liveness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errDown = errors.New("connection refused")

// fakeSleeper records requested delays and parks the loop after limit calls.
type fakeSleeper struct {
	mu       sync.Mutex
	delays   []time.Duration
	limit    int
	once     sync.Once
	finished chan struct{}
}

func newFakeSleeper(limit int) *fakeSleeper {
	return &fakeSleeper{limit: limit, finished: make(chan struct{})}
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	n := len(f.delays)
	f.mu.Unlock()

	if n >= f.limit {
		f.once.Do(func() { close(f.finished) })
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeSleeper) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.finished:
	case <-time.After(5 * time.Second):
		t.Fatal("probe loop did not reach the expected cycle")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	sl := newFakeSleeper(6)
	m := NewMonitor(ProberFunc(func(context.Context) error { return nil }),
		Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second},
		WithSleep(sl.sleep))

	m.Start(context.Background())
	sl.wait(t)
	m.Stop()

	want := []time.Duration{1, 2, 4, 5, 5, 5}
	if len(sl.delays) != len(want) {
		t.Fatalf("delays = %v", sl.delays)
	}
	for i, w := range want {
		if sl.delays[i] != w*time.Second {
			t.Errorf("delay[%d] = %v, want %v", i, sl.delays[i], w*time.Second)
		}
	}
}

func TestBackoffDoublesOnFailureToo(t *testing.T) {
	sl := newFakeSleeper(3)
	m := NewMonitor(ProberFunc(func(context.Context) error { return errDown }),
		Config{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Minute},
		WithSleep(sl.sleep))

	m.Start(context.Background())
	sl.wait(t)

	s := m.State()
	m.Stop()

	if s.Reachable {
		t.Error("expected unreachable after 3 failures")
	}
	if s.ConsecutiveFailures != 3 {
		t.Errorf("failures = %d, want 3", s.ConsecutiveFailures)
	}
	if s.BackoffMs() != 400 {
		t.Errorf("BackoffMs = %d, want 400", s.BackoffMs())
	}
	if sl.delays[2] != 400*time.Millisecond {
		t.Errorf("third delay = %v", sl.delays[2])
	}
}

func TestProbeThreshold(t *testing.T) {
	results := []error{errDown, errDown, nil, errDown}
	i := 0
	m := NewMonitor(ProberFunc(func(context.Context) error {
		err := results[i]
		i++
		return err
	}), Config{FailureThreshold: 2})

	want := []State{
		{Reachable: true, ConsecutiveFailures: 1},
		{Reachable: false, ConsecutiveFailures: 2},
		{Reachable: true, ConsecutiveFailures: 0},
		{Reachable: true, ConsecutiveFailures: 1},
	}
	for n, w := range want {
		s := m.Probe(context.Background())
		if s.Reachable != w.Reachable || s.ConsecutiveFailures != w.ConsecutiveFailures {
			t.Errorf("probe %d: got %+v, want %+v", n+1, s, w)
		}
	}
}

func TestThresholdOne(t *testing.T) {
	m := NewMonitor(ProberFunc(func(context.Context) error { return errDown }), Config{FailureThreshold: 1})

	if s := m.Probe(context.Background()); s.Reachable {
		t.Error("threshold 1 should flip on first failure")
	}
}

func TestNilProberAlwaysReachable(t *testing.T) {
	m := NewMonitor(nil, Config{})
	m.Start(context.Background())
	defer m.Stop()

	if m.Running() {
		t.Error("no loop should run without a prober")
	}
	s := m.Probe(context.Background())
	if !s.Reachable || s.ConsecutiveFailures != 0 {
		t.Errorf("state = %+v", s)
	}
	if s.Backoff != DefaultConfig().BaseDelay {
		t.Errorf("backoff = %v", s.Backoff)
	}
}

func TestStopDiscardsLateResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	m := NewMonitor(ProberFunc(func(context.Context) error {
		close(entered)
		<-release // ignores cancellation, like a slow network stack
		return errDown
	}), Config{FailureThreshold: 1})

	m.Start(context.Background())
	<-entered

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	for m.Running() {
		time.Sleep(time.Millisecond)
	}
	close(release)
	<-stopped

	s := m.State()
	if !s.Reachable || s.ConsecutiveFailures != 0 {
		t.Errorf("late probe result leaked into state: %+v", s)
	}
	if m.Running() {
		t.Error("loop still running after Stop")
	}
}

func TestRestartResetsBackoff(t *testing.T) {
	sl := newFakeSleeper(4)
	m := NewMonitor(ProberFunc(func(context.Context) error { return errDown }),
		Config{BaseDelay: time.Second, MaxDelay: time.Hour},
		WithSleep(sl.sleep))

	m.Start(context.Background())
	sl.wait(t)
	if s := m.State(); s.Reachable || s.Backoff != 8*time.Second {
		t.Fatalf("before restart: %+v", s)
	}

	sl2 := newFakeSleeper(1)
	m.sleep = sl2.sleep
	m.Restart(context.Background(), ProberFunc(func(context.Context) error { return nil }))
	sl2.wait(t)
	defer m.Stop()

	s := m.State()
	if !s.Reachable || s.ConsecutiveFailures != 0 {
		t.Errorf("after restart: %+v", s)
	}
	if sl2.delays[0] != time.Second {
		t.Errorf("first delay after restart = %v, want base", sl2.delays[0])
	}
}

func TestOnChange(t *testing.T) {
	m := NewMonitor(ProberFunc(func(context.Context) error { return errDown }), Config{FailureThreshold: 1})

	var got []bool
	m.OnChange(func(s State) { got = append(got, s.Reachable) })
	m.Probe(context.Background())

	if len(got) != 1 || got[0] {
		t.Errorf("OnChange calls = %v", got)
	}
}

func TestProbeTimeoutIsApplied(t *testing.T) {
	m := NewMonitor(ProberFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), Config{ProbeTimeout: 20 * time.Millisecond, FailureThreshold: 1})

	start := time.Now()
	s := m.Probe(context.Background())
	if time.Since(start) > 2*time.Second {
		t.Error("probe was not bounded by its timeout")
	}
	if s.Reachable {
		t.Error("timed-out probe should count as a failure")
	}
}
