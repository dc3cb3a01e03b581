// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestThrottle_FirstRunIsImmediate(t *testing.T) {
	var runs atomic.Int32
	th := NewThrottle(time.Hour, func() { runs.Add(1) })

	th.Trigger()
	if runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", runs.Load())
	}
	if th.Pending() {
		t.Error("nothing should be pending after an immediate run")
	}
}

func TestThrottle_CollapsesIntoTrailingRun(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{}, 4)
	th := NewThrottle(50*time.Millisecond, func() {
		runs.Add(1)
		done <- struct{}{}
	})

	th.Trigger() // immediate
	<-done
	for i := 0; i < 10; i++ {
		th.Trigger()
	}
	if runs.Load() != 1 {
		t.Fatalf("burst ran %d times before the interval elapsed", runs.Load())
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("trailing run never happened")
	}
	if runs.Load() != 2 {
		t.Errorf("runs = %d, want 2", runs.Load())
	}
}

func TestThrottle_Flush(t *testing.T) {
	var runs atomic.Int32
	th := NewThrottle(time.Hour, func() { runs.Add(1) })

	th.Flush()
	if runs.Load() != 0 {
		t.Fatal("Flush with nothing pending must not run")
	}

	th.Trigger()
	th.Trigger()
	if !th.Pending() {
		t.Fatal("second trigger should be pending")
	}
	th.Flush()
	if runs.Load() != 2 {
		t.Errorf("runs = %d, want 2", runs.Load())
	}
	th.Flush()
	if runs.Load() != 2 {
		t.Errorf("second Flush ran again: %d", runs.Load())
	}
}

func TestThrottle_Stop(t *testing.T) {
	var runs atomic.Int32
	th := NewThrottle(20*time.Millisecond, func() { runs.Add(1) })

	th.Trigger()
	th.Trigger()
	th.Stop()
	th.Trigger()
	time.Sleep(60 * time.Millisecond)

	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
}

func TestThrottle_ZeroIntervalRunsEveryTime(t *testing.T) {
	var runs atomic.Int32
	th := NewThrottle(0, func() { runs.Add(1) })

	for i := 0; i < 5; i++ {
		th.Trigger()
	}
	if runs.Load() != 5 {
		t.Errorf("runs = %d, want 5", runs.Load())
	}
}
