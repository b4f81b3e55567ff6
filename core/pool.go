package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ItemState is the lifecycle position of a pool item.
type ItemState int

const (
	ItemUnknown ItemState = iota
	ItemQueued
	ItemRunning
	ItemCompleted
)

func (s ItemState) String() string {
	switch s {
	case ItemQueued:
		return "queued"
	case ItemRunning:
		return "running"
	case ItemCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ItemResult is the outcome of a completed pool item. Err is an *ItemError when
// the item failed.
type ItemResult struct {
	ID       string
	Value    any
	Err      error
	Duration time.Duration
}

// OK reports whether the item completed without error.
func (r ItemResult) OK() bool { return r.Err == nil }

// Pool admits queued work items under a concurrency cap. Each admitted item runs
// as a managed task in the group named after the pool.
//
// A finishing item re-drains the queue itself, so the next item is admitted
// without waiting for an external poll.
type Pool struct {
	rt   *Runtime
	name string

	mu         sync.Mutex
	capacity   int
	active     int
	queue      *WorkQueue
	results    map[string]ItemResult
	running    map[uint64]poolRun // keyed by admission token, not item id
	nextToken  uint64
	generation uint64 // bumped by Clear; stale tasks compare against it
}

// poolRun is one admitted execution. The same item id may be admitted more than
// once; each admission holds its own slot.
type poolRun struct {
	id     string
	handle Handle
}

// CreatePool creates a pool with the given capacity (minimum 1).
func (rt *Runtime) CreatePool(name string, capacity int) *Pool {
	if name == "" {
		name = fmt.Sprintf("pool-%s", uuid.NewString()[:8])
	}
	if capacity < 1 {
		capacity = 1
	}
	rt.registry.EnsureGroup(name)
	return &Pool{
		rt:       rt,
		name:     name,
		capacity: capacity,
		queue:    NewWorkQueue(),
		results:  make(map[string]ItemResult),
		running:  make(map[uint64]poolRun),
	}
}

// Name returns the pool name, which is also the group of its tasks.
func (p *Pool) Name() string { return p.name }

// Schedule queues item and returns its id. An empty id is replaced by a fresh UUID.
// Reusing an id that is still queued or running schedules another run; the
// result of the last run to finish is kept.
func (p *Pool) Schedule(item WorkItem, id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	p.queue.Push(id, item)
	p.drain()
	return id
}

// Resize changes the capacity (minimum 1) and admits queued items if room opened up.
// Shrinking never kills running items; the pool just admits nothing until active
// drops below the new capacity.
func (p *Pool) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	p.mu.Lock()
	p.capacity = capacity
	p.mu.Unlock()
	p.drain()
}

func (p *Pool) drain() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reconcileLocked()
	for p.active < p.capacity {
		qi, ok := p.queue.Pop()
		if !ok {
			break
		}
		p.active++
		p.nextToken++
		gen, token := p.generation, p.nextToken
		h, _ := p.rt.SpawnManaged(func(ctx context.Context) error {
			p.runItem(ctx, gen, token, qi)
			return nil
		}, p.name+":"+qi.ID, TaskOptions{Group: p.name})
		p.running[token] = poolRun{id: qi.ID, handle: h}
	}
	p.rt.metrics.RecordPoolQueueDepth(p.name, p.queue.Len())
}

// reconcileLocked releases the slots of items whose task was killed from outside
// (group kill, eviction) and never got to report back.
func (p *Pool) reconcileLocked() {
	for token, run := range p.running {
		if run.handle.Killed() {
			delete(p.running, token)
			p.active--
			p.results[run.id] = ItemResult{ID: run.id, Err: &ItemError{ItemID: run.id, Err: ErrTaskKilled}}
		}
	}
}

func (p *Pool) runItem(ctx context.Context, gen, token uint64, qi QueuedItem) {
	start := time.Now()
	v, err := runItemProtected(ctx, qi)
	d := time.Since(start)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	run, ok := p.running[token]
	if !ok {
		// Already reconciled as killed.
		p.mu.Unlock()
		return
	}
	if run.handle.Killed() {
		v, err = nil, &ItemError{ItemID: qi.ID, Err: ErrTaskKilled}
	}
	delete(p.running, token)
	p.active--
	p.results[qi.ID] = ItemResult{ID: qi.ID, Value: v, Err: err, Duration: d}
	p.rt.metrics.RecordPoolItemDuration(p.name, d, err != nil)
	p.mu.Unlock()

	if err != nil {
		p.rt.logger.Debug("pool item failed", F("pool", p.name), F("item", qi.ID), F("error", err))
	}
	p.drain()
}

func runItemProtected(ctx context.Context, qi QueuedItem) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = &ItemError{ItemID: qi.ID, Err: panicError(r), Panic: r, Stack: debug.Stack()}
		}
	}()
	v, err = qi.Item(ctx)
	if err != nil {
		return nil, &ItemError{ItemID: qi.ID, Err: err}
	}
	return v, nil
}

// =============================================================================
// Queries
// =============================================================================

// Result returns the outcome of a completed item.
func (p *Pool) Result(id string) (ItemResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconcileLocked()
	r, ok := p.results[id]
	return r, ok
}

// Results returns a copy of every recorded outcome keyed by item id.
func (p *Pool) Results() map[string]ItemResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconcileLocked()
	out := make(map[string]ItemResult, len(p.results))
	for k, v := range p.results {
		out[k] = v
	}
	return out
}

// State reports where item id is in its lifecycle. An id with a pending run
// reports that run even if an earlier run already completed.
func (p *Pool) State(id string) ItemState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconcileLocked()
	if len(p.runningLocked(id)) > 0 {
		return ItemRunning
	}
	if p.queue.Contains(id) {
		return ItemQueued
	}
	if _, ok := p.results[id]; ok {
		return ItemCompleted
	}
	return ItemUnknown
}

// Stats returns the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconcileLocked()
	return PoolStats{
		Name:      p.name,
		Capacity:  p.capacity,
		Active:    p.active,
		Queued:    p.queue.Len(),
		Completed: len(p.results),
	}
}

func (p *Pool) runningHandles() []Handle {
	out := make([]Handle, 0, len(p.running))
	for _, run := range p.running {
		out = append(out, run.handle)
	}
	return out
}

// runningLocked returns the handles of every admitted run of id.
func (p *Pool) runningLocked(id string) []Handle {
	var out []Handle
	for _, run := range p.running {
		if run.id == id {
			out = append(out, run.handle)
		}
	}
	return out
}

// =============================================================================
// Waiting
// =============================================================================

// WaitForAll blocks until the queue is empty and no item is running, or until
// timeout (<= 0 means none) elapses. It returns whether the pool went idle.
func (p *Pool) WaitForAll(ctx context.Context, timeout time.Duration) bool {
	deadline := deadlineFrom(timeout)
	for {
		p.mu.Lock()
		p.reconcileLocked()
		idle := p.active == 0 && p.queue.IsEmpty()
		handles := p.runningHandles()
		p.mu.Unlock()

		if idle {
			return true
		}
		remaining, ok := remainingUntil(deadline)
		if !ok || ctx.Err() != nil {
			return false
		}
		if len(handles) == 0 {
			// Queued but nothing admitted yet; give drain a chance.
			if err := p.rt.host.Sleep(ctx, waitPollInterval); err != nil {
				return false
			}
			p.drain()
			continue
		}
		WaitAll(ctx, handles, remaining)
	}
}

// WaitForTask blocks until item id has no pending run and a result, or until
// timeout elapses. The second return is false on timeout or when the pool does
// not know id.
func (p *Pool) WaitForTask(ctx context.Context, id string, timeout time.Duration) (ItemResult, bool) {
	deadline := deadlineFrom(timeout)
	for {
		p.mu.Lock()
		p.reconcileLocked()
		var wait []Handle
		if hs := p.runningLocked(id); len(hs) > 0 {
			wait = hs
		} else if p.queue.Contains(id) {
			// Queued: progress comes from any running item finishing.
			wait = p.runningHandles()
		} else {
			r, ok := p.results[id]
			p.mu.Unlock()
			return r, ok
		}
		p.mu.Unlock()

		remaining, ok := remainingUntil(deadline)
		if !ok || ctx.Err() != nil {
			return ItemResult{}, false
		}
		if len(wait) == 0 {
			if err := p.rt.host.Sleep(ctx, waitPollInterval); err != nil {
				return ItemResult{}, false
			}
			p.drain()
			continue
		}
		// A finishing item records its result before its handle dies, so the
		// next pass sees it.
		WaitAny(ctx, wait, remaining)
	}
}

// Clear kills every outstanding pool task and resets the queue, results and
// active count. In-flight results are discarded.
func (p *Pool) Clear() {
	p.mu.Lock()
	handles := p.runningHandles()
	p.generation++
	p.queue.Clear()
	p.results = make(map[string]ItemResult)
	p.running = make(map[uint64]poolRun)
	p.active = 0
	p.mu.Unlock()

	for _, h := range handles {
		h.Kill()
	}
	p.rt.metrics.RecordPoolQueueDepth(p.name, 0)
}

const waitPollInterval = 50 * time.Millisecond

func deadlineFrom(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// remainingUntil returns the time left before deadline; a zero deadline never expires.
func remainingUntil(deadline time.Time) (time.Duration, bool) {
	if deadline.IsZero() {
		return 0, true
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, false
	}
	return left, true
}
