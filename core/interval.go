package core

import (
	"context"
	"runtime/debug"
	"sync"
	"time"
)

// intervalPollInterval caps how long the interval loop sleeps between checks.
const intervalPollInterval = 100 * time.Millisecond

// IntervalOptions configures Interval.
type IntervalOptions struct {
	// MaxRuns stops the timer after this many invocations. Zero means unlimited.
	MaxRuns int

	// StopOnError stops the timer after the first failed invocation.
	StopOnError bool

	Name     string
	Group    string
	Priority int
}

// IntervalTimer repeats a function on a cadence from a single managed task.
//
// Stop is cooperative: the owning loop observes it at most one poll later.
// Restart resumes the loop, spawning a new owning task if the previous one
// already exited.
type IntervalTimer struct {
	rt    *Runtime
	fn    TaskFunc
	every time.Duration
	opts  IntervalOptions

	mu      sync.Mutex
	running bool
	runs    int
	lastRun time.Duration
	lastErr error
	handle  Handle
	looping bool   // the current owning loop has not decided to exit
	gen     uint64 // incremented per owning task
}

// Interval starts calling fn every `every`. The first call happens one interval
// after creation.
func (rt *Runtime) Interval(fn TaskFunc, every time.Duration, opts IntervalOptions) *IntervalTimer {
	if every <= 0 {
		every = time.Millisecond
	}
	t := &IntervalTimer{
		rt:      rt,
		fn:      fn,
		every:   every,
		opts:    opts,
		running: true,
		lastRun: rt.host.Uptime(),
	}
	t.mu.Lock()
	t.spawnLocked()
	t.mu.Unlock()
	return t
}

func (t *IntervalTimer) spawnLocked() {
	name := t.opts.Name
	if name == "" {
		name = "interval:" + resolveTaskName(t.fn, "")
	}
	t.gen++
	t.looping = true
	gen := t.gen
	t.handle, _ = t.rt.SpawnManaged(func(ctx context.Context) error {
		return t.loop(ctx, gen)
	}, name, TaskOptions{
		Priority: t.opts.Priority,
		Group:    t.opts.Group,
	})
}

func (t *IntervalTimer) pollInterval() time.Duration {
	poll := min(intervalPollInterval, t.every/10)
	if poll <= 0 {
		poll = time.Millisecond
	}
	return poll
}

func (t *IntervalTimer) loop(ctx context.Context, gen uint64) error {
	poll := t.pollInterval()
	defer func() {
		t.mu.Lock()
		if t.gen == gen {
			t.looping = false
		}
		t.mu.Unlock()
	}()
	for {
		t.mu.Lock()
		if !t.running || t.gen != gen {
			if t.gen == gen {
				t.looping = false
			}
			t.mu.Unlock()
			return nil
		}
		due := t.rt.host.Uptime()-t.lastRun >= t.every
		t.mu.Unlock()

		if due {
			err := t.invoke(ctx)

			t.mu.Lock()
			t.runs++
			t.lastRun = t.rt.host.Uptime()
			t.lastErr = err
			if err != nil && t.opts.StopOnError {
				t.running = false
			}
			if t.opts.MaxRuns > 0 && t.runs >= t.opts.MaxRuns {
				t.running = false
			}
			t.mu.Unlock()
		}

		if err := t.rt.host.Sleep(ctx, poll); err != nil {
			return nil
		}
	}
}

func (t *IntervalTimer) invoke(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError(p)
			t.rt.logger.Error("interval function panicked",
				F("panic", p),
				F("stack", string(debug.Stack())),
			)
		}
	}()
	if err = t.fn(ctx); err != nil {
		t.rt.logger.Warn("interval function failed", F("error", err))
	}
	return err
}

// Stop asks the loop to exit.
func (t *IntervalTimer) Stop() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Restart resumes a stopped timer. A timer that exhausted MaxRuns gets a fresh
// run budget.
func (t *IntervalTimer) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	if t.opts.MaxRuns > 0 && t.runs >= t.opts.MaxRuns {
		t.runs = 0
	}
	if !t.looping || t.handle == nil || t.handle.Status() == TaskStateDead {
		t.lastRun = t.rt.host.Uptime()
		t.spawnLocked()
	}
}

// IsRunning reports the running flag.
func (t *IntervalTimer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// RunCount returns how many times fn has been invoked.
func (t *IntervalTimer) RunCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// LastRun returns the host uptime of the last invocation.
func (t *IntervalTimer) LastRun() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

// LastError returns the error of the last invocation.
func (t *IntervalTimer) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Handle returns the current owning task.
func (t *IntervalTimer) Handle() Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle
}
