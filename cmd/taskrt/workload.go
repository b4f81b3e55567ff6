package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Swind/go-task-runtime/core"
	"github.com/pkg/errors"
)

// workload is the synthetic mix both commands run: a bounded pool of short
// jobs, a heartbeat interval, some long-lived grouped tasks and a few
// RunWithTimeout races.
type workload struct {
	rt   *core.Runtime
	pool *core.Pool

	jobs      int
	sleepers  int
	heartbeat time.Duration
}

func newWorkload(rt *core.Runtime, poolSize, jobs int) *workload {
	return &workload{
		rt:        rt,
		pool:      rt.CreatePool("workload", poolSize),
		jobs:      jobs,
		sleepers:  4,
		heartbeat: 250 * time.Millisecond,
	}
}

// Run blocks until ctx ends, then stops the heartbeat and the sleepers. Pool
// work is left for Finish.
func (w *workload) Run(ctx context.Context) error {
	hb := w.rt.Interval(func(ctx context.Context) error {
		w.rt.Logger().Debug("heartbeat", core.F("stats", w.pool.Stats()))
		return nil
	}, w.heartbeat, core.IntervalOptions{Name: "heartbeat", Group: "workload"})
	defer hb.Stop()

	for i := range w.sleepers {
		w.rt.SpawnManaged(func(ctx context.Context) error {
			return w.rt.Host().Sleep(ctx, time.Hour)
		}, fmt.Sprintf("sleeper-%d", i), core.TaskOptions{Group: "sleepers", Priority: core.PriorityMin})
	}
	defer w.rt.KillGroup("sleepers")

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	round := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		round++
		w.scheduleRound(round)

		if round%50 == 0 {
			w.flush(ctx)
		}
		if round%10 == 0 {
			res := w.rt.RunWithTimeout(ctx, w.job(round, 0), 50*time.Millisecond, nil)
			if res.Err != nil && !errors.Is(res.Err, core.ErrTimeout) && ctx.Err() == nil {
				w.rt.Logger().Warn("timed job failed", core.F("error", res.Err))
			}
		}
	}
}

// flush waits for the backlog, logs a summary and drops stored results so a
// long serve does not grow without bound.
func (w *workload) flush(ctx context.Context) {
	if !w.pool.WaitForAll(ctx, 5*time.Second) {
		return
	}
	s := w.summary()
	w.rt.Logger().Info("workload flush", core.F("ok", s.OK), core.F("failed", s.Failed))
	w.pool.Clear()
}

// Finish summarizes the stored results and clears the pool.
func (w *workload) Finish() summary {
	s := w.summary()
	w.pool.Clear()
	return s
}

type summary struct {
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

func (w *workload) summary() summary {
	var s summary
	for _, r := range w.pool.Results() {
		if r.OK() {
			s.OK++
		} else {
			s.Failed++
		}
	}
	return s
}

func (w *workload) scheduleRound(round int) {
	for i := range w.jobs {
		w.pool.Schedule(w.job(round, i), fmt.Sprintf("r%d-j%d", round, i))
	}
}

// job sleeps for a random slice of time and fails one time in twenty.
func (w *workload) job(round, i int) core.WorkItem {
	d := time.Duration(10+rand.Intn(90)) * time.Millisecond
	fail := rand.Intn(20) == 0
	return func(ctx context.Context) (any, error) {
		if err := w.rt.Host().Sleep(ctx, d); err != nil {
			return nil, err
		}
		if fail {
			return nil, errors.Errorf("job r%d-j%d failed", round, i)
		}
		return d.String(), nil
	}
}
