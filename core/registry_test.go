package core

import (
	"context"
	"testing"
	"time"
)

// TestRegistry_InsertRemoveSweep covers the basic registry operations
func TestRegistry_InsertRemoveSweep(t *testing.T) {
	r := NewRegistry()
	a := insertFake(r, 5, 0)
	b := insertFake(r, 5, 0)

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	if !r.Remove(a.ID) {
		t.Error("Remove(a) = false, want true")
	}
	if r.Remove(a.ID) {
		t.Error("second Remove(a) = true, want false")
	}

	b.Handle.Kill()
	if n := r.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len after sweep = %d, want 0", r.Len())
	}
}

// TestRegistry_GroupMembershipFollowsRemoval verifies group back-references are unlinked
func TestRegistry_GroupMembershipFollowsRemoval(t *testing.T) {
	r := NewRegistry()
	rec := &TaskRecord{ID: r.nextTaskID(), Handle: newFakeHandle(), Group: "workers"}
	r.Insert(rec)

	members, ok := r.GroupMembers("workers")
	if !ok || len(members) != 1 {
		t.Fatalf("members = %v ok=%v, want 1 member", members, ok)
	}

	r.Remove(rec.ID)

	members, ok = r.GroupMembers("workers")
	if !ok {
		t.Fatal("group vanished after member removal, want present")
	}
	if len(members) != 0 {
		t.Errorf("members = %d, want 0", len(members))
	}
}

// TestSpawnManaged_SelfCleanup verifies a finished task removes its own record
// Given: a task in a group that returns immediately
// When: it finishes
// Then: the registry and the group no longer reference it
func TestSpawnManaged_SelfCleanup(t *testing.T) {
	// Arrange
	rt, _ := newTestRuntime()

	// Act
	h, id := rt.SpawnManaged(func(ctx context.Context) error { return nil }, "quick", TaskOptions{Group: "g"})
	WaitAll(context.Background(), []Handle{h}, time.Second)

	// Assert
	if _, ok := rt.Lookup(id); ok {
		t.Error("record still present after exit")
	}
	members, ok := rt.GroupMembers("g")
	if !ok || len(members) != 0 {
		t.Errorf("group members = %v ok=%v, want present and empty", members, ok)
	}
}

// TestSpawnManaged_RecordFields verifies defaults and clamping
func TestSpawnManaged_RecordFields(t *testing.T) {
	rt, _ := newTestRuntime()
	defer rt.KillAll()

	_, id1 := rt.SpawnManaged(blockUntilKilled, "", TaskOptions{})
	_, id2 := rt.SpawnManaged(blockUntilKilled, "named", TaskOptions{Priority: 42})
	_, id3 := rt.SpawnManaged(blockUntilKilled, "low", TaskOptions{Priority: -3})

	r1, _ := rt.Lookup(id1)
	r2, _ := rt.Lookup(id2)
	r3, _ := rt.Lookup(id3)
	if r1.Priority != PriorityDefault || r1.Name == "" {
		t.Errorf("default record = %+v", r1)
	}
	if r2.Priority != PriorityMax || r2.Name != "named" {
		t.Errorf("clamped high record = %+v", r2)
	}
	if r3.Priority != PriorityMin {
		t.Errorf("clamped low priority = %d, want %d", r3.Priority, PriorityMin)
	}
	if r1.Status != RecordRunning {
		t.Errorf("status = %s, want running", r1.Status)
	}
}

// TestSpawnManaged_CurrentTaskID verifies the task id is available from ctx
func TestSpawnManaged_CurrentTaskID(t *testing.T) {
	rt, _ := newTestRuntime()
	got := make(chan TaskID, 1)

	h, id := rt.SpawnManaged(func(ctx context.Context) error {
		v, _ := CurrentTaskID(ctx)
		got <- v
		return nil
	}, "", TaskOptions{})
	WaitAll(context.Background(), []Handle{h}, time.Second)

	if v := <-got; v != id {
		t.Errorf("CurrentTaskID = %d, want %d", v, id)
	}
}

// =============================================================================
// Group manager
// =============================================================================

// TestKillGroup_Nonexistent verifies unknown groups report false without side effects
func TestKillGroup_Nonexistent(t *testing.T) {
	rt, _ := newTestRuntime()
	h, _ := rt.SpawnManaged(blockUntilKilled, "", TaskOptions{Group: "real"})
	defer rt.KillAll()

	if rt.KillGroup("nonexistent") {
		t.Error("KillGroup(nonexistent) = true, want false")
	}
	if h.Status() != TaskStateRunning {
		t.Error("unrelated task was killed")
	}
	for _, g := range rt.Groups() {
		if g == "nonexistent" {
			t.Error("KillGroup created the group")
		}
	}
}

// TestKillGroup_Populated verifies members die and the group stays, empty
// Given: three tasks in group "batch" and one outside it
// When: KillGroup("batch") is called
// Then: the three die, the outsider lives and the group is present but empty
func TestKillGroup_Populated(t *testing.T) {
	// Arrange
	rt, _ := newTestRuntime()
	var members []Handle
	for i := 0; i < 3; i++ {
		h, _ := rt.SpawnManaged(blockUntilKilled, "", TaskOptions{Group: "batch"})
		members = append(members, h)
	}
	outsider, _ := rt.SpawnManaged(blockUntilKilled, "", TaskOptions{})
	defer rt.KillAll()

	// Act
	ok := rt.KillGroup("batch")

	// Assert
	if !ok {
		t.Fatal("KillGroup(batch) = false, want true")
	}
	for i, h := range members {
		if h.Status() != TaskStateDead {
			t.Errorf("member %d still running", i)
		}
	}
	if outsider.Status() != TaskStateRunning {
		t.Error("outsider was killed")
	}
	got, present := rt.GroupMembers("batch")
	if !present || len(got) != 0 {
		t.Errorf("group after kill = %v present=%v, want present and empty", got, present)
	}
	if !rt.KillGroup("batch") {
		t.Error("KillGroup on empty existing group = false, want true")
	}
}

// TestKillAll_SparesMonitor verifies KillAll stops tasks but keeps the monitor
func TestKillAll_SparesMonitor(t *testing.T) {
	rt, _ := newTestRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Close()

	for i := 0; i < 4; i++ {
		rt.SpawnManaged(blockUntilKilled, "", TaskOptions{})
	}

	if n := rt.KillAll(); n != 4 {
		t.Errorf("KillAll = %d, want 4", n)
	}
	if got := rt.Stats().TotalThreads; got != 1 {
		t.Errorf("TotalThreads = %d, want 1 (monitor)", got)
	}
}

// TestStats_Shape verifies counts, groups, memory and uptime
func TestStats_Shape(t *testing.T) {
	rt, mem := newTestRuntime()
	mem.setUsed(40)
	rt.SpawnManaged(blockUntilKilled, "", TaskOptions{Group: "a"})
	rt.SpawnManaged(blockUntilKilled, "", TaskOptions{Group: "a"})
	killed, _ := rt.SpawnManaged(blockUntilKilled, "", TaskOptions{Group: "b"})
	defer rt.KillAll()
	killed.Kill()

	stats := rt.Stats()

	if stats.TotalThreads != 2 {
		t.Errorf("TotalThreads = %d, want 2", stats.TotalThreads)
	}
	if g := stats.Groups["a"]; g.Total != 2 || g.Active != 2 {
		t.Errorf("group a = %+v, want {2 2}", g)
	}
	if g, ok := stats.Groups["b"]; !ok || g.Total != 0 {
		t.Errorf("group b = %+v ok=%v, want present and empty after sweep", g, ok)
	}
	if stats.MemoryUsedPercent < 39.9 || stats.MemoryUsedPercent > 40.1 {
		t.Errorf("MemoryUsedPercent = %v, want 40", stats.MemoryUsedPercent)
	}
	if stats.Uptime <= 0 {
		t.Errorf("Uptime = %v, want > 0", stats.Uptime)
	}
}

// TestInitialize_Validation verifies invalid limits are rejected
func TestInitialize_Validation(t *testing.T) {
	rt, _ := newTestRuntime()

	if err := rt.Initialize(ResourceLimits{MaxMemoryPercent: 150}); err == nil {
		t.Error("Initialize(150%) = nil, want error")
	}
	if err := rt.Initialize(ResourceLimits{MaxGlobalTasks: 50}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if l := rt.Limits(); l.MaxGlobalTasks != 50 || l.MaxMemoryPercent != DefaultMaxMemoryPercent {
		t.Errorf("Limits = %+v", l)
	}
}
