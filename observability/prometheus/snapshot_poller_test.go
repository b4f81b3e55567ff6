package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-task-runtime/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type runtimeStub struct {
	stats core.Stats
}

func (s runtimeStub) Stats() core.Stats { return s.stats }

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

// fixedMemory reports a constant 25% usage.
type fixedMemory struct{}

func (fixedMemory) Memory() (uint64, uint64, error) { return 750, 1000, nil }

func TestSnapshotPoller_CollectsRuntimeAndPoolStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddRuntime("rt-a", runtimeStub{stats: core.Stats{
		TotalThreads:      5,
		Groups:            map[string]core.GroupStats{"workers": {Total: 3, Active: 2}},
		MemoryUsedPercent: 42.5,
		Uptime:            12,
	}})
	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{
		Name:      "pool-a",
		Capacity:  8,
		Active:    2,
		Queued:    4,
		Completed: 9,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		tasks := testutil.ToFloat64(poller.runtimeTasks.WithLabelValues("rt-a"))
		active := testutil.ToFloat64(poller.poolActive.WithLabelValues("pool-a"))
		return tasks == 5 && active == 2
	})

	if got := testutil.ToFloat64(poller.runtimeGroupActive.WithLabelValues("rt-a", "workers")); got != 2 {
		t.Fatalf("group active gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(poller.runtimeMemoryUsed.WithLabelValues("rt-a")); got != 42.5 {
		t.Fatalf("memory gauge = %v, want 42.5", got)
	}
	if got := testutil.ToFloat64(poller.poolCapacity.WithLabelValues("pool-a")); got != 8 {
		t.Fatalf("pool capacity gauge = %v, want 8", got)
	}
}

// TestSnapshotPoller_LiveRuntime verifies snapshots of a real runtime
func TestSnapshotPoller_LiveRuntime(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}
	rt := core.NewRuntime(&core.Config{Memory: fixedMemory{}, Logger: core.NewNoOpLogger()})
	defer rt.KillAll()
	for i := 0; i < 2; i++ {
		rt.SpawnManaged(func(ctx context.Context) error { <-ctx.Done(); return nil }, "", core.TaskOptions{Group: "g"})
	}
	poller.AddRuntime("live", rt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(poller.runtimeGroupTotal.WithLabelValues("live", "g")) == 2
	})
	if got := testutil.ToFloat64(poller.runtimeMemoryUsed.WithLabelValues("live")); got != 25 {
		t.Fatalf("memory gauge = %v, want 25", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
