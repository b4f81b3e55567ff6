package core

// GroupStats counts the members of one group.
type GroupStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// Stats is a point-in-time view of a Runtime.
type Stats struct {
	TotalThreads      int                   `json:"total_threads"`
	Groups            map[string]GroupStats `json:"groups"`
	MemoryUsedPercent float64               `json:"memory_used_percent"`
	Uptime            float64               `json:"uptime"` // seconds
}

// PoolStats represents runtime observability state for a pool.
type PoolStats struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Active    int    `json:"active"`
	Queued    int    `json:"queued"`
	Completed int    `json:"completed"`
}

// Stats sweeps dead entries and reports task counts, group counts, memory usage
// and uptime. A failing memory probe reports 0% and is logged.
func (rt *Runtime) Stats() Stats {
	rt.registry.mu.Lock()
	rt.registry.sweepLocked()
	total := len(rt.registry.records)
	groups := rt.registry.groupStatsLocked()
	rt.registry.mu.Unlock()

	var used float64
	if free, all, err := rt.memory.Memory(); err != nil {
		rt.logger.Warn("memory probe failed", F("error", err))
	} else {
		used = memoryUsedPercent(free, all)
	}

	return Stats{
		TotalThreads:      total,
		Groups:            groups,
		MemoryUsedPercent: used,
		Uptime:            rt.host.Uptime().Seconds(),
	}
}
