package core

import (
	"context"
	"sync"
	"time"
)

// TimeoutResult is the outcome of RunWithTimeout.
type TimeoutResult struct {
	Value any
	Err   error

	// Completed is the shared completion flag: set by whichever of the worker
	// or the timer finished first. It is false only when ctx ended the wait.
	Completed bool

	// TimedOut is true when the timer won; Value is nil in that case.
	TimedOut bool
}

// RunWithTimeout races fn against a timer, both running as managed tasks.
//
// If the timer fires first it kills the worker and calls onTimeout with
// ErrTimeout before RunWithTimeout returns. Once the race is decided the losing
// task is killed so nothing is left running in the background. A timeout <= 0
// fires at once.
func (rt *Runtime) RunWithTimeout(ctx context.Context, fn ResultFunc, timeout time.Duration, onTimeout func(error)) TimeoutResult {
	var (
		mu       sync.Mutex
		res      TimeoutResult
		once     sync.Once
		resolved = make(chan struct{})
	)
	// claim records the winner's outcome. The winner closes resolved once its
	// follow-up work is done, so onTimeout has run before the caller returns.
	claim := func(set func(r *TimeoutResult)) bool {
		won := false
		once.Do(func() {
			mu.Lock()
			set(&res)
			res.Completed = true
			mu.Unlock()
			won = true
		})
		return won
	}

	worker, _ := rt.SpawnManaged(func(ctx context.Context) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = panicError(p)
				if claim(func(r *TimeoutResult) { r.Err = err }) {
					close(resolved)
				}
			}
		}()
		v, err := fn(ctx)
		if claim(func(r *TimeoutResult) {
			r.Value = v
			r.Err = err
		}) {
			close(resolved)
		}
		return err
	}, resolveTaskName(fn, ""), DefaultTaskOptions())

	timer, _ := rt.SpawnManaged(func(ctx context.Context) error {
		if err := rt.host.Sleep(ctx, timeout); err != nil {
			return nil
		}
		if claim(func(r *TimeoutResult) { r.TimedOut = true }) {
			worker.Kill()
			rt.logger.Debug("task timed out", F("timeout", timeout))
			if onTimeout != nil {
				onTimeout(ErrTimeout)
			}
			close(resolved)
		}
		return nil
	}, "timeout-timer", DefaultTaskOptions())

	select {
	case <-resolved:
	case <-ctx.Done():
		worker.Kill()
		timer.Kill()
		return TimeoutResult{Err: ctx.Err()}
	}

	mu.Lock()
	out := res
	mu.Unlock()

	// Kill the loser; the winner finishes and cleans up after itself.
	if out.TimedOut {
		worker.Kill()
	} else {
		timer.Kill()
	}
	return out
}
