package core

import (
	"context"
	"math"
	"sort"
)

const (
	// priorityEvictFraction of live tasks is killed under memory pressure.
	priorityEvictFraction = 0.3

	// ageEvictTarget is the fraction of MaxGlobalTasks age eviction reduces to.
	ageEvictTarget = 0.8

	monitorTaskName = "resource-monitor"
)

const (
	EvictReasonMemory    = "memory"
	EvictReasonTaskCount = "task_count"
)

// =============================================================================
// Eviction policies (registry side)
// =============================================================================

// liveLocked returns live records in registration order, skipping exclude.
func (r *Registry) liveLocked(exclude TaskID) []*TaskRecord {
	var out []*TaskRecord
	for _, rec := range r.orderedLocked() {
		if rec.ID == exclude || !rec.alive() {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// EvictByPriority kills the lowest-priority ceil(30%) of live tasks, marks them
// as killed by the resource manager and sweeps. Ties keep registration order.
// The record with id exclude is never selected.
func (r *Registry) EvictByPriority(exclude TaskID) []TaskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()
	live := r.liveLocked(exclude)
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].Priority < live[j].Priority })

	n := int(math.Ceil(priorityEvictFraction * float64(len(live))))
	victims := make([]TaskRecord, 0, n)
	for _, rec := range live[:n] {
		rec.Handle.Kill()
		rec.Status = RecordKilledByResourceManager
		victims = append(victims, *rec)
	}
	r.sweepLocked()
	return victims
}

// EvictByAge kills and removes the oldest live tasks until the live count is at
// most floor(80% of maxTasks). It does nothing while the count is within maxTasks.
func (r *Registry) EvictByAge(maxTasks int, exclude TaskID) []TaskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()
	count := len(r.records)
	if count <= maxTasks {
		return nil
	}
	live := r.liveLocked(exclude)
	sort.SliceStable(live, func(i, j int) bool { return live[i].CreatedAt < live[j].CreatedAt })

	target := int(math.Floor(ageEvictTarget * float64(maxTasks)))
	var victims []TaskRecord
	for _, rec := range live {
		if count <= target {
			break
		}
		rec.Handle.Kill()
		rec.Status = RecordKilledByResourceManager
		victims = append(victims, *rec)
		r.removeLocked(rec.ID)
		count--
	}
	return victims
}

// =============================================================================
// Resource monitor (runtime side)
// =============================================================================

// CheckResources runs one monitor cycle: memory pressure first, then task count.
func (rt *Runtime) CheckResources() {
	limits := rt.Limits()
	exclude := rt.monitorID()

	free, total, err := rt.memory.Memory()
	if err != nil {
		rt.logger.Warn("memory probe failed", F("error", err))
	} else if used := memoryUsedPercent(free, total); used > limits.MaxMemoryPercent {
		victims := rt.registry.EvictByPriority(exclude)
		rt.reportEviction(EvictReasonMemory, victims, F("memory_used_percent", used))
	}

	if victims := rt.registry.EvictByAge(limits.MaxGlobalTasks, exclude); len(victims) > 0 {
		rt.reportEviction(EvictReasonTaskCount, victims, F("max_global_threads", limits.MaxGlobalTasks))
	}
}

func (rt *Runtime) reportEviction(reason string, victims []TaskRecord, extra Field) {
	if len(victims) == 0 {
		return
	}
	names := make([]string, len(victims))
	for i, v := range victims {
		names[i] = v.Name
	}
	rt.logger.Warn("evicted tasks",
		F("reason", reason),
		F("count", len(victims)),
		F("tasks", names),
		extra,
	)
	rt.metrics.RecordEviction(reason, len(victims))
}

func (rt *Runtime) monitorLoop(ctx context.Context) error {
	for {
		if err := rt.host.Sleep(ctx, rt.monitorInterval); err != nil {
			return nil
		}
		rt.CheckResources()
	}
}
