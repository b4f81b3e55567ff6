// Package taskruntime provides a resource-aware runtime for cooperative managed tasks.
//
// Every task spawned through the runtime is tracked in a registry with a name,
// a priority (1..10) and an optional group. A background resource monitor
// watches host memory and the global task count and evicts tasks when either
// ceiling is crossed: the lowest-priority 30% under memory pressure, the oldest
// tasks down to 80% of the cap when there are too many.
//
// On top of managed tasks the runtime offers group kill, wait combinators, a
// bounded pool, counting semaphores, timed execution and interval timers.
//
// # Quick Start
//
// Initialize the default runtime at application startup:
//
//	if err := taskruntime.Initialize(taskruntime.DefaultResourceLimits()); err != nil {
//		log.Fatal(err)
//	}
//	defer taskruntime.Shutdown()
//
// Spawn managed tasks:
//
//	h, _ := taskruntime.SpawnManaged(func(ctx context.Context) error {
//		// Your code here. Return when ctx is cancelled.
//		return nil
//	}, "worker", taskruntime.TaskOptions{Priority: 7, Group: "workers"})
//
//	taskruntime.WaitAll(context.Background(), []taskruntime.Handle{h}, time.Second)
//
// # Key Concepts
//
// Handle: the host-level task. Kill cancels the task's context and marks it
// dead at once; the body must return when its context is done.
//
// Priority: 1 is evicted first, 10 last. The resource monitor runs at 10.
//
// Group: a name shared by related tasks so they can be killed together.
//
// Pool: admits queued work under a concurrency cap and keeps per-item results.
//
// # Cooperative Scheduling
//
// Nothing is preempted. A killed task stops at its next yield point: a
// Host.Sleep, a select on ctx.Done(), or any blocking call that honors ctx.
//
// # Example
//
//	import (
//		"context"
//		taskruntime "github.com/Swind/go-task-runtime"
//	)
//
//	func main() {
//		taskruntime.Initialize(taskruntime.DefaultResourceLimits())
//		defer taskruntime.Shutdown()
//
//		pool := taskruntime.CreatePool("downloads", 4)
//		for _, url := range urls {
//			url := url
//			pool.Schedule(func(ctx context.Context) (any, error) {
//				return fetch(ctx, url)
//			}, url)
//		}
//		pool.WaitForAll(context.Background(), time.Minute)
//	}
//
// For more details, see https://github.com/Swind/go-task-runtime
package taskruntime
