package taskruntime

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-runtime/core"
)

// =============================================================================
// Default Runtime Helper (Singleton)
// =============================================================================

var (
	defaultRuntime *core.Runtime
	defaultCancel  context.CancelFunc
	defaultMu      sync.Mutex
)

// Initialize creates and starts the process-wide default runtime with the given
// limits. Calling it again re-applies the limits to the running instance.
func Initialize(limits ResourceLimits) error {
	defaultMu.Lock()
	if defaultRuntime != nil {
		defer defaultMu.Unlock()
		return defaultRuntime.Initialize(limits)
	}
	defaultMu.Unlock()

	cfg := core.DefaultConfig()
	cfg.Limits = limits
	return InitializeWithConfig(cfg)
}

// InitializeWithConfig is Initialize with explicit collaborators. A nil cfg
// means core.DefaultConfig().
func InitializeWithConfig(cfg *Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRuntime != nil {
		if cfg == nil {
			return defaultRuntime.Initialize(core.ResourceLimits{})
		}
		return defaultRuntime.Initialize(cfg.Limits)
	}
	if cfg == nil {
		cfg = core.DefaultConfig()
	}

	limits := cfg.Limits
	rt := core.NewRuntime(cfg)
	if err := rt.Initialize(limits); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	rt.Start(ctx)

	defaultRuntime = rt
	defaultCancel = cancel
	return nil
}

// Default returns the default runtime.
// It panics if Initialize has not been called.
func Default() *core.Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRuntime == nil {
		panic("taskruntime not initialized. Call Initialize() first.")
	}
	return defaultRuntime
}

// Shutdown kills every managed task, stops the monitor and drops the default
// runtime.
func Shutdown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRuntime != nil {
		defaultRuntime.KillAll()
		defaultCancel()
		defaultRuntime.Close()
		defaultRuntime = nil
		defaultCancel = nil
	}
}

// =============================================================================
// Free functions over the default runtime
// =============================================================================

// SpawnManaged starts fn as a managed task on the default runtime.
func SpawnManaged(fn TaskFunc, name string, opts TaskOptions) (Handle, TaskID) {
	return Default().SpawnManaged(fn, name, opts)
}

// LaunchParallel runs fns as one group of managed tasks on the default runtime.
func LaunchParallel(ctx context.Context, fns []ResultFunc, opts ParallelOptions) *ParallelResult {
	return Default().LaunchParallel(ctx, fns, opts)
}

// KillAll kills every managed task except the resource monitor.
func KillAll() int {
	return Default().KillAll()
}

// KillGroup kills every live member of group name.
func KillGroup(name string) bool {
	return Default().KillGroup(name)
}

// RegisterCrashHandler adds h to the default runtime's crash handlers.
func RegisterCrashHandler(h CrashHandler) {
	Default().RegisterCrashHandler(h)
}

// CreatePool creates a bounded pool on the default runtime.
func CreatePool(name string, capacity int) *Pool {
	return Default().CreatePool(name, capacity)
}

// CreateSemaphore creates a counting semaphore.
func CreateSemaphore(count int) *Semaphore {
	return core.NewSemaphore(count)
}

// CreateMutex creates a semaphore with one permit.
func CreateMutex() *Semaphore {
	return core.NewMutex()
}

// RunWithTimeout races fn against a timer on the default runtime.
func RunWithTimeout(ctx context.Context, fn ResultFunc, timeout time.Duration, onTimeout func(error)) TimeoutResult {
	return Default().RunWithTimeout(ctx, fn, timeout, onTimeout)
}

// Interval repeats fn every `every` on the default runtime.
func Interval(fn TaskFunc, every time.Duration, opts IntervalOptions) *IntervalTimer {
	return Default().Interval(fn, every, opts)
}

// GetStats returns the default runtime's stats.
func GetStats() Stats {
	return Default().Stats()
}
