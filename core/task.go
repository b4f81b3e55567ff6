package core

import (
	"context"
	"time"
)

// TaskFunc is the body of a managed task.
type TaskFunc func(ctx context.Context) error

// ResultFunc is a task body that produces a value.
type ResultFunc func(ctx context.Context) (any, error)

// TaskID identifies a managed task within one Runtime.
type TaskID uint64

// =============================================================================
// Priority: eviction order under memory pressure (lowest goes first)
// =============================================================================

const (
	PriorityMin     = 1
	PriorityDefault = 5
	PriorityMax     = 10
)

// TaskOptions describes a managed task at spawn time.
type TaskOptions struct {
	// Priority in [PriorityMin, PriorityMax]. Zero means PriorityDefault;
	// other out-of-range values are clamped.
	Priority int

	// Group is fixed for the lifetime of the task.
	Group string
}

func DefaultTaskOptions() TaskOptions {
	return TaskOptions{Priority: PriorityDefault}
}

func normalizePriority(p int) int {
	switch {
	case p == 0:
		return PriorityDefault
	case p < PriorityMin:
		return PriorityMin
	case p > PriorityMax:
		return PriorityMax
	default:
		return p
	}
}

// =============================================================================
// TaskRecord: registry metadata for one managed task
// =============================================================================

// RecordStatus is the registry's view of a task.
type RecordStatus int

const (
	RecordRunning RecordStatus = iota
	RecordKilledByResourceManager
	RecordDead
)

func (s RecordStatus) String() string {
	switch s {
	case RecordRunning:
		return "running"
	case RecordKilledByResourceManager:
		return "killed_by_resource_manager"
	case RecordDead:
		return "dead"
	default:
		return "unknown"
	}
}

// TaskRecord is the metadata the registry keeps per managed task.
type TaskRecord struct {
	ID        TaskID
	Name      string
	Handle    Handle
	CreatedAt time.Duration // host uptime at spawn
	Priority  int
	Group     string
	Status    RecordStatus
}

func (r *TaskRecord) alive() bool {
	return r.Handle != nil && r.Handle.Status() == TaskStateRunning
}

// =============================================================================
// Context Helper
// =============================================================================
type taskIDKeyType struct{}

var taskIDKey taskIDKeyType

// CurrentTaskID returns the id of the managed task running with ctx.
func CurrentTaskID(ctx context.Context) (TaskID, bool) {
	if v := ctx.Value(taskIDKey); v != nil {
		return v.(TaskID), true
	}
	return 0, false
}

func withTaskID(ctx context.Context, id TaskID) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}
