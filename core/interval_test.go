package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// TestInterval_MaxRuns verifies the timer stops after the run budget
// Given: an interval of 50ms with MaxRuns 3
// When: 300ms pass
// Then: the function ran exactly 3 times and the timer reports not running
func TestInterval_MaxRuns(t *testing.T) {
	// Arrange
	rt, _ := newTestRuntime()
	var calls atomic.Int32

	// Act
	timer := rt.Interval(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 50*time.Millisecond, IntervalOptions{MaxRuns: 3})
	time.Sleep(300 * time.Millisecond)

	// Assert
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
	if timer.IsRunning() {
		t.Error("IsRunning = true after MaxRuns, want false")
	}
	if timer.RunCount() != 3 {
		t.Errorf("RunCount = %d, want 3", timer.RunCount())
	}
	waitFor(t, time.Second, func() bool { return timer.Handle().Status() == TaskStateDead })
}

// TestInterval_FirstRunAfterOneInterval verifies nothing runs immediately
func TestInterval_FirstRunAfterOneInterval(t *testing.T) {
	rt, _ := newTestRuntime()
	var calls atomic.Int32

	timer := rt.Interval(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 200*time.Millisecond, IntervalOptions{})
	defer timer.Stop()

	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("calls after 50ms = %d, want 0", n)
	}
}

// TestInterval_StopOnError verifies a failing call stops the timer
func TestInterval_StopOnError(t *testing.T) {
	rt, _ := newTestRuntime()
	boom := errors.New("boom")
	var calls atomic.Int32

	timer := rt.Interval(func(ctx context.Context) error {
		calls.Add(1)
		return boom
	}, 20*time.Millisecond, IntervalOptions{StopOnError: true})

	waitFor(t, time.Second, func() bool { return !timer.IsRunning() })
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	if !errors.Is(timer.LastError(), boom) {
		t.Errorf("LastError = %v, want boom", timer.LastError())
	}
}

// TestInterval_PanicIsContained verifies a panicking call does not kill the loop
func TestInterval_PanicIsContained(t *testing.T) {
	rt, _ := newTestRuntime()
	var calls atomic.Int32

	timer := rt.Interval(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			panic("first call")
		}
		return nil
	}, 20*time.Millisecond, IntervalOptions{})
	defer timer.Stop()

	waitFor(t, time.Second, func() bool { return calls.Load() >= 2 })
	if timer.LastError() != nil {
		t.Errorf("LastError = %v, want nil after a successful call", timer.LastError())
	}
}

// TestInterval_StopAndRestart verifies Restart resumes a stopped timer
// Given: a running interval timer
// When: it is stopped, left idle, then restarted
// Then: no calls happen while stopped and calls resume after Restart
func TestInterval_StopAndRestart(t *testing.T) {
	// Arrange
	rt, _ := newTestRuntime()
	var calls atomic.Int32
	timer := rt.Interval(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 20*time.Millisecond, IntervalOptions{Name: "ticker"})
	defer timer.Stop()
	waitFor(t, time.Second, func() bool { return calls.Load() >= 1 })

	// Act - stop
	timer.Stop()
	waitFor(t, time.Second, func() bool { return timer.Handle().Status() == TaskStateDead })
	stoppedAt := calls.Load()
	time.Sleep(80 * time.Millisecond)

	// Assert - idle while stopped
	if n := calls.Load(); n != stoppedAt {
		t.Errorf("calls while stopped went from %d to %d", stoppedAt, n)
	}

	// Act - restart
	timer.Restart()

	// Assert - resumed
	if !timer.IsRunning() {
		t.Error("IsRunning after Restart = false, want true")
	}
	waitFor(t, time.Second, func() bool { return calls.Load() > stoppedAt })
}

// TestInterval_RestartAfterMaxRuns verifies an exhausted timer gets a new budget
func TestInterval_RestartAfterMaxRuns(t *testing.T) {
	rt, _ := newTestRuntime()
	var calls atomic.Int32
	timer := rt.Interval(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 10*time.Millisecond, IntervalOptions{MaxRuns: 2})
	waitFor(t, time.Second, func() bool { return !timer.IsRunning() })

	timer.Restart()

	waitFor(t, time.Second, func() bool { return calls.Load() == 4 && !timer.IsRunning() })
}

// TestInterval_KilledByGroup verifies the owning task belongs to the requested group
func TestInterval_KilledByGroup(t *testing.T) {
	rt, _ := newTestRuntime()
	timer := rt.Interval(func(ctx context.Context) error { return nil },
		10*time.Millisecond, IntervalOptions{Group: "tickers"})

	rt.KillGroup("tickers")

	if timer.Handle().Status() != TaskStateDead {
		t.Error("interval task survived its group kill")
	}
}
