package core

import (
	"context"
	"time"
)

// =============================================================================
// CrashHandler: Interface for observing managed task failures
// =============================================================================

// CrashInfo describes a managed task that failed with an error or a panic.
type CrashInfo struct {
	ID    TaskID
	Name  string
	Group string
	Err   error
	Stack []byte // set when the failure was a panic
	At    time.Duration
}

// CrashHandler is notified when a managed task fails.
//
// Handlers are fire-and-forget. Each call is isolated: a handler that panics
// is logged and does not prevent the remaining handlers from running.
type CrashHandler interface {
	HandleCrash(ctx context.Context, info CrashInfo)
}

// CrashHandlerFunc adapts a function to CrashHandler.
type CrashHandlerFunc func(ctx context.Context, info CrashInfo)

// HandleCrash calls f.
func (f CrashHandlerFunc) HandleCrash(ctx context.Context, info CrashInfo) {
	f(ctx, info)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting runtime metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskSpawned records a managed task start. group may be empty.
	RecordTaskSpawned(group string)

	// RecordTaskCrash records a managed task failure.
	RecordTaskCrash(name string, group string)

	// RecordEviction records tasks killed by the resource monitor.
	//
	// Parameters:
	// - reason: "memory" or "task_count"
	// - count: number of tasks killed in this pass
	RecordEviction(reason string, count int)

	// RecordPoolQueueDepth records the current queue depth of a pool.
	RecordPoolQueueDepth(pool string, depth int)

	// RecordPoolItemDuration records how long a pool item ran and whether it failed.
	RecordPoolItemDuration(pool string, duration time.Duration, failed bool)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskSpawned is a no-op.
func (m *NilMetrics) RecordTaskSpawned(group string) {}

// RecordTaskCrash is a no-op.
func (m *NilMetrics) RecordTaskCrash(name string, group string) {}

// RecordEviction is a no-op.
func (m *NilMetrics) RecordEviction(reason string, count int) {}

// RecordPoolQueueDepth is a no-op.
func (m *NilMetrics) RecordPoolQueueDepth(pool string, depth int) {}

// RecordPoolItemDuration is a no-op.
func (m *NilMetrics) RecordPoolItemDuration(pool string, duration time.Duration, failed bool) {}
