package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// Wait combinators
// =============================================================================

// WaitAll blocks until every handle is dead, the timeout elapses or ctx is done.
// It returns true iff all handles died in time. timeout <= 0 waits without a deadline.
func WaitAll(ctx context.Context, handles []Handle, timeout time.Duration) bool {
	deadline, stop := deadlineChan(timeout)
	defer stop()

	for _, h := range handles {
		if h == nil {
			continue
		}
		select {
		case <-h.Done():
		case <-deadline:
			return allDead(handles)
		case <-ctx.Done():
			return allDead(handles)
		}
	}
	return true
}

// WaitAny returns the index of the first handle observed dead. When several are
// already dead the lowest index wins. It returns (-1, false) on timeout or when
// ctx is done first.
func WaitAny(ctx context.Context, handles []Handle, timeout time.Duration) (int, bool) {
	if i := firstDead(handles); i >= 0 {
		return i, true
	}
	if len(handles) == 0 {
		return -1, false
	}

	deadline, stop := deadlineChan(timeout)
	defer stop()

	found := make(chan int, len(handles))
	quit := make(chan struct{})
	defer close(quit)
	for i, h := range handles {
		if h == nil {
			continue
		}
		go func(i int, h Handle) {
			select {
			case <-h.Done():
				found <- i
			case <-quit:
			}
		}(i, h)
	}

	select {
	case <-found:
		// Report the lowest dead index, not whichever goroutine was scheduled first.
		return firstDead(handles), true
	case <-deadline:
	case <-ctx.Done():
	}
	if i := firstDead(handles); i >= 0 {
		return i, true
	}
	return -1, false
}

func allDead(handles []Handle) bool {
	for _, h := range handles {
		if h != nil && h.Status() != TaskStateDead {
			return false
		}
	}
	return true
}

func firstDead(handles []Handle) int {
	for i, h := range handles {
		if h != nil && h.Status() == TaskStateDead {
			return i
		}
	}
	return -1
}

// deadlineChan returns a channel closed after timeout, or a nil channel when
// timeout <= 0.
func deadlineChan(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(timeout)
	return t.C, func() { t.Stop() }
}

// =============================================================================
// Parallel launch
// =============================================================================

// ParallelOptions configures LaunchParallel.
type ParallelOptions struct {
	// Group shared by every launched task. Empty means "parallel-<n>".
	Group string

	// Priority applied to every launched task.
	Priority int

	// Wait blocks LaunchParallel until every task is dead or Timeout elapses.
	Wait    bool
	Timeout time.Duration
}

// ParallelResult collects the handles and per-index results of LaunchParallel.
type ParallelResult struct {
	Group   string
	Handles []Handle
	IDs     []TaskID

	// Completed is set when Wait was requested: whether every task finished in time.
	Completed bool

	mu      sync.Mutex
	results []any
	errs    []error
}

// Results returns a copy of the result slots, indexed like the input functions.
// Slots of unfinished, failed or killed tasks are nil.
func (p *ParallelResult) Results() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.results))
	copy(out, p.results)
	return out
}

// Errors returns a copy of the per-index errors. Slots of killed tasks are nil.
func (p *ParallelResult) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]error, len(p.errs))
	copy(out, p.errs)
	return out
}

// Wait blocks until every launched task is dead or timeout elapses.
func (p *ParallelResult) Wait(ctx context.Context, timeout time.Duration) bool {
	return WaitAll(ctx, p.Handles, timeout)
}

// LaunchParallel spawns one managed task per function, all in the same group.
// Each task writes its return value into the result slot of its input index.
// A failing function still reports through the crash handlers.
func (rt *Runtime) LaunchParallel(ctx context.Context, fns []ResultFunc, opts ParallelOptions) *ParallelResult {
	group := opts.Group
	if group == "" {
		group = fmt.Sprintf("parallel-%d", rt.parallelSeq.Add(1))
	}
	rt.registry.EnsureGroup(group)

	res := &ParallelResult{
		Group:   group,
		Handles: make([]Handle, len(fns)),
		IDs:     make([]TaskID, len(fns)),
		results: make([]any, len(fns)),
		errs:    make([]error, len(fns)),
	}

	for i, fn := range fns {
		i, fn := i, fn
		name := fmt.Sprintf("%s-%d", group, i)
		res.Handles[i], res.IDs[i] = rt.SpawnManaged(func(ctx context.Context) error {
			v, err := fn(ctx)
			if rt.killedFromInside(ctx) {
				return err
			}
			res.mu.Lock()
			res.results[i] = v
			res.errs[i] = err
			res.mu.Unlock()
			return err
		}, name, TaskOptions{Priority: opts.Priority, Group: group})
	}

	if opts.Wait {
		res.Completed = WaitAll(ctx, res.Handles, opts.Timeout)
	}
	return res
}

// killedFromInside reports whether the managed task running with ctx was killed.
// A record missing while its body still runs was killed and swept.
func (rt *Runtime) killedFromInside(ctx context.Context) bool {
	id, ok := CurrentTaskID(ctx)
	if !ok {
		return false
	}
	rec, ok := rt.Lookup(id)
	return !ok || rec.Handle.Killed()
}
