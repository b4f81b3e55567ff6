package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// TestCrashHistory_RingOrder verifies newest-first order and overwrite of the oldest
// Given: a ring of capacity 3
// When: 5 records are added
// Then: Recent returns the last 3, newest first
func TestCrashHistory_RingOrder(t *testing.T) {
	// Arrange
	h := newCrashHistory(3)

	// Act
	for i := range 5 {
		h.Add(CrashInfo{Name: fmt.Sprintf("c%d", i)})
	}

	// Assert
	got := h.Recent(0)
	want := []string{"c4", "c3", "c2"}
	if len(got) != len(want) {
		t.Fatalf("len(Recent(0)) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("Recent(0)[%d] = %s, want %s", i, got[i].Name, want[i])
		}
	}
	if limited := h.Recent(1); len(limited) != 1 || limited[0].Name != "c4" {
		t.Errorf("Recent(1) = %+v, want [c4]", limited)
	}
}

// TestCrashHistory_Empty verifies an empty ring returns nothing
func TestCrashHistory_Empty(t *testing.T) {
	h := newCrashHistory(0)
	if got := h.Recent(10); got != nil {
		t.Errorf("Recent(10) = %+v, want nil", got)
	}
}

// TestRecentCrashes_RecordsFailures verifies failed managed tasks land in the history
func TestRecentCrashes_RecordsFailures(t *testing.T) {
	// Arrange
	rt, _ := newTestRuntime()
	boom := errors.New("boom")

	// Act
	h1, _ := rt.SpawnManaged(func(ctx context.Context) error { return boom }, "erroring", TaskOptions{})
	h2, _ := rt.SpawnManaged(func(ctx context.Context) error { panic("bad") }, "panicking", TaskOptions{})
	WaitAll(context.Background(), []Handle{h1, h2}, time.Second)

	// Assert
	waitFor(t, time.Second, func() bool { return len(rt.RecentCrashes(0)) == 2 })
	for _, c := range rt.RecentCrashes(0) {
		switch c.Name {
		case "erroring":
			if !errors.Is(c.Err, boom) {
				t.Errorf("erroring.Err = %v, want boom", c.Err)
			}
		case "panicking":
			if len(c.Stack) == 0 || !strings.Contains(c.Err.Error(), "bad") {
				t.Errorf("panicking = %+v, want stack and panic value", c)
			}
		default:
			t.Errorf("unexpected crash record %q", c.Name)
		}
	}
}

// TestResolveTaskName verifies explicit names win over the function symbol
func TestResolveTaskName(t *testing.T) {
	if got := resolveTaskName(blockUntilKilled, "explicit"); got != "explicit" {
		t.Errorf("resolveTaskName(explicit) = %q", got)
	}
	if got := resolveTaskName(blockUntilKilled, ""); !strings.HasSuffix(got, "blockUntilKilled") {
		t.Errorf("resolveTaskName() = %q, want suffix blockUntilKilled", got)
	}
	if got := resolveTaskName(nil, ""); got != "" {
		t.Errorf("resolveTaskName(nil) = %q, want empty", got)
	}
}
