package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/mem"
)

// =============================================================================
// Host primitive: the cooperative task facility the runtime is layered on
// =============================================================================

// TaskState is the status reported by a Handle.
type TaskState int

const (
	TaskStateRunning TaskState = iota
	TaskStateDead
)

func (s TaskState) String() string {
	switch s {
	case TaskStateRunning:
		return "running"
	case TaskStateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Handle refers to one unit of work spawned by a Host.
//
// Once a handle reports TaskStateDead it never reports TaskStateRunning again.
type Handle interface {
	Status() TaskState

	// Kill terminates the task. Killing a dead handle is a no-op.
	Kill()

	// Killed reports whether the task was terminated by Kill rather than by returning.
	Killed() bool

	// Done is closed once the handle is dead.
	Done() <-chan struct{}
}

// Host spawns units of work and provides cooperative sleep and a monotonic clock.
type Host interface {
	Spawn(fn func(ctx context.Context)) Handle

	// Sleep yields for d. It returns ctx.Err() if ctx is cancelled first.
	Sleep(ctx context.Context, d time.Duration) error

	// Uptime is the monotonic time elapsed since the host was created.
	Uptime() time.Duration
}

// MemoryProbe reports free and total memory in bytes.
type MemoryProbe interface {
	Memory() (free, total uint64, err error)
}

// =============================================================================
// GoroutineHost: one goroutine per spawned unit
// =============================================================================

// GoroutineHost is the default Host. Each spawned function runs on its own goroutine
// with a context that Kill cancels.
//
// Go cannot stop a goroutine from the outside, so Kill flips the handle to dead
// immediately and cancels its context; the body is expected to observe the
// cancellation at its next Sleep or ctx check.
type GoroutineHost struct {
	start time.Time
}

// NewGoroutineHost creates a GoroutineHost whose uptime starts now.
func NewGoroutineHost() *GoroutineHost {
	return &GoroutineHost{start: time.Now()}
}

// Spawn starts fn on a new goroutine.
func (h *GoroutineHost) Spawn(fn func(ctx context.Context)) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	gh := &goroutineHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer gh.markDead()
		defer cancel()
		fn(ctx)
	}()
	return gh
}

// Sleep blocks for d or until ctx is done.
func (h *GoroutineHost) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Uptime returns the monotonic time since NewGoroutineHost.
func (h *GoroutineHost) Uptime() time.Duration {
	return time.Since(h.start)
}

type goroutineHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	killed atomic.Bool
}

func (h *goroutineHandle) Status() TaskState {
	select {
	case <-h.done:
		return TaskStateDead
	default:
		return TaskStateRunning
	}
}

func (h *goroutineHandle) Kill() {
	if h.Status() == TaskStateDead {
		return
	}
	h.killed.Store(true)
	h.cancel()
	h.markDead()
}

func (h *goroutineHandle) Killed() bool {
	return h.killed.Load()
}

func (h *goroutineHandle) Done() <-chan struct{} {
	return h.done
}

func (h *goroutineHandle) markDead() {
	h.once.Do(func() { close(h.done) })
}

// =============================================================================
// VirtualMemoryProbe: host memory via gopsutil
// =============================================================================

// VirtualMemoryProbe reads system memory through gopsutil.
type VirtualMemoryProbe struct{}

// Memory returns available and total virtual memory.
func (VirtualMemoryProbe) Memory() (free, total uint64, err error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "read virtual memory")
	}
	return vm.Available, vm.Total, nil
}

// memoryUsedPercent computes (1 - free/total) * 100. A zero total reports 0.
func memoryUsedPercent(free, total uint64) float64 {
	if total == 0 {
		return 0
	}
	if free > total {
		free = total
	}
	return (1 - float64(free)/float64(total)) * 100
}
