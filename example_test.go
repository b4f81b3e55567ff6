package taskruntime_test

import (
	"context"
	"fmt"
	"time"

	taskruntime "github.com/Swind/go-task-runtime"
)

// ExampleSpawnManaged demonstrates the basic usage with only one import.
func ExampleSpawnManaged() {
	// Initialize the default runtime
	taskruntime.Initialize(taskruntime.ResourceLimits{MaxMemoryPercent: 100, MaxGlobalTasks: 100})
	defer taskruntime.Shutdown()

	h, _ := taskruntime.SpawnManaged(func(ctx context.Context) error {
		fmt.Println("Hello from a managed task")
		return nil
	}, "hello", taskruntime.TaskOptions{})

	taskruntime.WaitAll(context.Background(), []taskruntime.Handle{h}, time.Second)

	// Output:
	// Hello from a managed task
}

// ExampleCreatePool demonstrates bounded concurrency and per-item results.
func ExampleCreatePool() {
	taskruntime.Initialize(taskruntime.ResourceLimits{MaxMemoryPercent: 100, MaxGlobalTasks: 100})
	defer taskruntime.Shutdown()

	pool := taskruntime.CreatePool("squares", 2)
	ids := make([]string, 0, 4)
	for i := 1; i <= 4; i++ {
		n := i
		ids = append(ids, pool.Schedule(func(ctx context.Context) (any, error) {
			return n * n, nil
		}, fmt.Sprintf("square-%d", n)))
	}

	pool.WaitForAll(context.Background(), time.Second)
	for _, id := range ids {
		r, _ := pool.Result(id)
		fmt.Println(id, r.Value)
	}

	// Output:
	// square-1 1
	// square-2 4
	// square-3 9
	// square-4 16
}

// ExampleRunWithTimeout demonstrates racing work against a deadline.
func ExampleRunWithTimeout() {
	taskruntime.Initialize(taskruntime.ResourceLimits{MaxMemoryPercent: 100, MaxGlobalTasks: 100})
	defer taskruntime.Shutdown()

	res := taskruntime.RunWithTimeout(context.Background(), func(ctx context.Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return "finished", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, 20*time.Millisecond, func(err error) {
		fmt.Println("timeout:", err)
	})

	fmt.Println("timed out:", res.TimedOut)

	// Output:
	// timeout: taskruntime: timeout
	// timed out: true
}

// ExampleLaunchParallel demonstrates fan-out with results kept by index.
func ExampleLaunchParallel() {
	taskruntime.Initialize(taskruntime.ResourceLimits{MaxMemoryPercent: 100, MaxGlobalTasks: 100})
	defer taskruntime.Shutdown()

	words := []string{"alpha", "beta", "gamma"}
	fns := make([]taskruntime.ResultFunc, len(words))
	for i, w := range words {
		w := w
		fns[i] = func(ctx context.Context) (any, error) { return len(w), nil }
	}

	res := taskruntime.LaunchParallel(context.Background(), fns, taskruntime.ParallelOptions{
		Group:   "lengths",
		Wait:    true,
		Timeout: time.Second,
	})
	fmt.Println(res.Results())

	// Output:
	// [5 4 5]
}
