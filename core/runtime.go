package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Runtime owns the task registry, the group index, the crash handlers and the
// resource monitor. Multiple runtimes are fully isolated from each other.
//
// It is safe for concurrent use.
type Runtime struct {
	host            Host
	memory          MemoryProbe
	logger          Logger
	metrics         Metrics
	monitorInterval time.Duration

	registry *Registry

	limitsMu sync.RWMutex
	limits   ResourceLimits

	handlersMu    sync.RWMutex
	crashHandlers []CrashHandler
	crashes       crashHistory

	monitor     atomic.Pointer[TaskRecord]
	parallelSeq atomic.Uint64
}

// NewRuntime creates a Runtime. A nil config means DefaultConfig().
// The resource monitor is not running until Start is called.
func NewRuntime(config *Config) *Runtime {
	if config == nil {
		config = DefaultConfig()
	}
	rt := &Runtime{
		host:            config.Host,
		memory:          config.Memory,
		logger:          config.Logger,
		metrics:         config.Metrics,
		monitorInterval: config.MonitorInterval,
		registry:        NewRegistry(),
		limits:          config.Limits.withDefaults(),
		crashes:         newCrashHistory(defaultCrashHistoryCapacity),
	}

	// Use defaults if not provided
	if rt.host == nil {
		rt.host = NewGoroutineHost()
	}
	if rt.memory == nil {
		rt.memory = VirtualMemoryProbe{}
	}
	if rt.logger == nil {
		rt.logger = NewDefaultLogger()
	}
	if rt.metrics == nil {
		rt.metrics = &NilMetrics{}
	}
	if rt.monitorInterval <= 0 {
		rt.monitorInterval = DefaultMonitorInterval
	}
	return rt
}

// Initialize replaces the resource limits. Zero fields take their defaults.
func (rt *Runtime) Initialize(limits ResourceLimits) error {
	limits = limits.withDefaults()
	if err := limits.Validate(); err != nil {
		return err
	}
	rt.limitsMu.Lock()
	rt.limits = limits
	rt.limitsMu.Unlock()
	rt.logger.Info("resource limits configured",
		F("max_memory_percent", limits.MaxMemoryPercent),
		F("max_global_threads", limits.MaxGlobalTasks),
	)
	return nil
}

// Limits returns the current resource limits.
func (rt *Runtime) Limits() ResourceLimits {
	rt.limitsMu.RLock()
	defer rt.limitsMu.RUnlock()
	return rt.limits
}

// Host returns the host the runtime spawns on.
func (rt *Runtime) Host() Host { return rt.host }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() Logger { return rt.logger }

// Start launches the resource monitor as a managed task. Calling Start while the
// monitor is alive does nothing. The monitor stops when ctx is done or on Close.
func (rt *Runtime) Start(ctx context.Context) {
	if m := rt.monitor.Load(); m != nil && m.alive() {
		return
	}
	_, id := rt.SpawnManaged(func(taskCtx context.Context) error {
		taskCtx, cancel := context.WithCancel(taskCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return rt.monitorLoop(taskCtx)
	}, monitorTaskName, TaskOptions{Priority: PriorityMax})

	rt.registry.mu.Lock()
	rec := rt.registry.records[id]
	rt.registry.mu.Unlock()
	if rec != nil {
		rt.monitor.Store(rec)
	}
}

// Close stops the resource monitor. Managed tasks keep running; use KillAll to stop them.
func (rt *Runtime) Close() {
	if m := rt.monitor.Swap(nil); m != nil {
		m.Handle.Kill()
		rt.registry.Remove(m.ID)
	}
}

func (rt *Runtime) monitorID() TaskID {
	if m := rt.monitor.Load(); m != nil {
		return m.ID
	}
	return 0
}

// =============================================================================
// Managed tasks
// =============================================================================

// SpawnManaged starts fn as a managed task and registers it.
//
// A returned error or a panic counts as a failure: it is logged and broadcast to
// every crash handler, and never propagated to the caller. On exit the task
// removes its own record. A task terminated with Kill skips all of this and is
// reclaimed by the next sweep instead.
func (rt *Runtime) SpawnManaged(fn TaskFunc, name string, opts TaskOptions) (Handle, TaskID) {
	id := rt.registry.nextTaskID()
	name = resolveTaskName(fn, name)
	if name == "" {
		name = fmt.Sprintf("task-%d", id)
	}
	rec := &TaskRecord{
		ID:        id,
		Name:      name,
		CreatedAt: rt.host.Uptime(),
		Priority:  normalizePriority(opts.Priority),
		Group:     opts.Group,
		Status:    RecordRunning,
	}

	// The body waits until the record is registered so that its self-removal
	// cannot race ahead of the insert.
	registered := make(chan struct{})
	rec.Handle = rt.host.Spawn(func(ctx context.Context) {
		<-registered
		rt.runManaged(withTaskID(ctx, id), rec, fn)
	})
	rt.registry.Insert(rec)
	close(registered)

	rt.metrics.RecordTaskSpawned(opts.Group)
	return rec.Handle, id
}

func (rt *Runtime) runManaged(ctx context.Context, rec *TaskRecord, fn TaskFunc) {
	var crash *CrashInfo
	func() {
		defer func() {
			if p := recover(); p != nil {
				crash = &CrashInfo{Err: panicError(p), Stack: debug.Stack()}
			}
		}()
		if err := fn(ctx); err != nil {
			crash = &CrashInfo{Err: err}
		}
	}()

	if rec.Handle.Killed() {
		return
	}
	if crash != nil {
		crash.ID = rec.ID
		crash.Name = rec.Name
		crash.Group = rec.Group
		crash.At = rt.host.Uptime()
		rt.broadcastCrash(ctx, *crash)
	}
	rt.registry.Remove(rec.ID)
}

// RegisterCrashHandler appends h to the crash handlers.
func (rt *Runtime) RegisterCrashHandler(h CrashHandler) {
	if h == nil {
		return
	}
	rt.handlersMu.Lock()
	rt.crashHandlers = append(rt.crashHandlers, h)
	rt.handlersMu.Unlock()
}

func (rt *Runtime) broadcastCrash(ctx context.Context, info CrashInfo) {
	rt.logger.Error("managed task failed",
		F("id", info.ID),
		F("name", info.Name),
		F("group", info.Group),
		F("error", info.Err),
	)
	rt.crashes.Add(info)
	rt.metrics.RecordTaskCrash(info.Name, info.Group)

	rt.handlersMu.RLock()
	handlers := make([]CrashHandler, len(rt.crashHandlers))
	copy(handlers, rt.crashHandlers)
	rt.handlersMu.RUnlock()

	for _, h := range handlers {
		rt.callCrashHandlerNoPanic(ctx, h, info)
	}
}

func (rt *Runtime) callCrashHandlerNoPanic(ctx context.Context, h CrashHandler, info CrashInfo) {
	defer func() {
		if p := recover(); p != nil {
			rt.logger.Error("crash handler panicked",
				F("task", info.Name),
				F("panic", p),
			)
		}
	}()
	h.HandleCrash(ctx, info)
}

// RecentCrashes returns up to limit crash records, newest first.
// limit <= 0 returns all retained records.
func (rt *Runtime) RecentCrashes(limit int) []CrashInfo {
	return rt.crashes.Recent(limit)
}

// =============================================================================
// Registry queries and bulk control
// =============================================================================

// Lookup returns a snapshot of the record with id.
func (rt *Runtime) Lookup(id TaskID) (TaskRecord, bool) {
	return rt.registry.Get(id)
}

// Sweep removes dead entries from the registry and returns how many were removed.
func (rt *Runtime) Sweep() int {
	return rt.registry.Sweep()
}

// KillAll kills every live managed task except the resource monitor and sweeps.
// It returns the number of tasks killed.
func (rt *Runtime) KillAll() int {
	exclude := rt.monitorID()
	var victims []Handle
	rt.registry.Each(func(rec *TaskRecord) {
		if rec.ID != exclude && rec.alive() {
			victims = append(victims, rec.Handle)
		}
	})
	for _, h := range victims {
		h.Kill()
	}
	rt.registry.Sweep()
	return len(victims)
}

// KillGroup kills every live task in the group and leaves the group present
// but empty. It returns false if the group was never created.
func (rt *Runtime) KillGroup(name string) bool {
	return rt.registry.KillGroup(name)
}

// Groups returns the sorted names of every group created so far.
func (rt *Runtime) Groups() []string {
	return rt.registry.Groups()
}

// GroupMembers returns snapshots of the records currently in a group.
func (rt *Runtime) GroupMembers(name string) ([]TaskRecord, bool) {
	return rt.registry.GroupMembers(name)
}
