package taskruntime

import "github.com/Swind/go-task-runtime/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskruntime package for most use cases.

// Runtime owns the task registry, the resource monitor and the crash handlers
type Runtime = core.Runtime

// Config holds the collaborators of a Runtime
type Config = core.Config

// ResourceLimits are the ceilings enforced by the resource monitor
type ResourceLimits = core.ResourceLimits

// Handle is a host-level task handle
type Handle = core.Handle

// TaskState is the host-level state of a handle
type TaskState = core.TaskState

// TaskID identifies a managed task
type TaskID = core.TaskID

// TaskFunc is the body of a managed task
type TaskFunc = core.TaskFunc

// ResultFunc is a task body that produces a value
type ResultFunc = core.ResultFunc

// WorkItem is one unit of pool work
type WorkItem = core.WorkItem

// TaskOptions sets priority and group at spawn time
type TaskOptions = core.TaskOptions

// TaskRecord is a snapshot of a registered task
type TaskRecord = core.TaskRecord

// CrashInfo describes a failed managed task
type CrashInfo = core.CrashInfo

// CrashHandler receives crash notifications
type CrashHandler = core.CrashHandler

// CrashHandlerFunc adapts a function to CrashHandler
type CrashHandlerFunc = core.CrashHandlerFunc

// Pool, Semaphore, IntervalTimer and their results
type (
	Pool            = core.Pool
	ItemResult      = core.ItemResult
	ItemState       = core.ItemState
	ItemError       = core.ItemError
	Semaphore       = core.Semaphore
	IntervalTimer   = core.IntervalTimer
	IntervalOptions = core.IntervalOptions
	ParallelOptions = core.ParallelOptions
	ParallelResult  = core.ParallelResult
	TimeoutResult   = core.TimeoutResult
	Stats           = core.Stats
	GroupStats      = core.GroupStats
	PoolStats       = core.PoolStats
	Logger          = core.Logger
	Metrics         = core.Metrics
	MemoryProbe     = core.MemoryProbe
	Host            = core.Host
)

// State and priority constants
const (
	TaskStateRunning = core.TaskStateRunning
	TaskStateDead    = core.TaskStateDead

	PriorityMin     = core.PriorityMin
	PriorityDefault = core.PriorityDefault
	PriorityMax     = core.PriorityMax
)

// Sentinel errors
var (
	ErrTimeout       = core.ErrTimeout
	ErrTaskKilled    = core.ErrTaskKilled
	ErrInvalidLimits = core.ErrInvalidLimits
)

// Convenience constructors
var (
	DefaultResourceLimits = core.DefaultResourceLimits
	DefaultConfig         = core.DefaultConfig
	NewRuntime            = core.NewRuntime
	NewSemaphore          = core.NewSemaphore
	NewMutex              = core.NewMutex
	CurrentTaskID         = core.CurrentTaskID
	WaitAll               = core.WaitAll
	WaitAny               = core.WaitAny
)
