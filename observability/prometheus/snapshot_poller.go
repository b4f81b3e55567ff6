package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-runtime/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RuntimeSnapshotProvider provides current runtime stats snapshots.
type RuntimeSnapshotProvider interface {
	Stats() core.Stats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports runtime/pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	runtimesMu sync.RWMutex
	runtimes   map[string]RuntimeSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	runtimeTasks       *prom.GaugeVec
	runtimeGroupTotal  *prom.GaugeVec
	runtimeGroupActive *prom.GaugeVec
	runtimeMemoryUsed  *prom.GaugeVec
	runtimeUptime      *prom.GaugeVec

	poolQueued    *prom.GaugeVec
	poolActive    *prom.GaugeVec
	poolCapacity  *prom.GaugeVec
	poolCompleted *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	runtimeTasks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "runtime_tasks",
		Help:      "Number of live managed tasks per runtime.",
	}, []string{"runtime"})
	runtimeGroupTotal := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "runtime_group_tasks",
		Help:      "Number of tasks per group.",
	}, []string{"runtime", "group"})
	runtimeGroupActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "runtime_group_active",
		Help:      "Number of running tasks per group.",
	}, []string{"runtime", "group"})
	runtimeMemoryUsed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "runtime_memory_used_percent",
		Help:      "Host memory usage seen by the runtime, in percent.",
	}, []string{"runtime"})
	runtimeUptime := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "runtime_uptime_seconds",
		Help:      "Host uptime in seconds.",
	}, []string{"runtime"})

	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "pool_queued",
		Help:      "Queued items per pool.",
	}, []string{"pool"})
	poolActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "pool_active",
		Help:      "Active items per pool.",
	}, []string{"pool"})
	poolCapacity := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "pool_capacity",
		Help:      "Concurrency cap per pool.",
	}, []string{"pool"})
	poolCompleted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskruntime",
		Name:      "pool_completed",
		Help:      "Items with a recorded result per pool.",
	}, []string{"pool"})

	var err error
	if runtimeTasks, err = registerCollector(reg, runtimeTasks); err != nil {
		return nil, err
	}
	if runtimeGroupTotal, err = registerCollector(reg, runtimeGroupTotal); err != nil {
		return nil, err
	}
	if runtimeGroupActive, err = registerCollector(reg, runtimeGroupActive); err != nil {
		return nil, err
	}
	if runtimeMemoryUsed, err = registerCollector(reg, runtimeMemoryUsed); err != nil {
		return nil, err
	}
	if runtimeUptime, err = registerCollector(reg, runtimeUptime); err != nil {
		return nil, err
	}
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolActive, err = registerCollector(reg, poolActive); err != nil {
		return nil, err
	}
	if poolCapacity, err = registerCollector(reg, poolCapacity); err != nil {
		return nil, err
	}
	if poolCompleted, err = registerCollector(reg, poolCompleted); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:           interval,
		runtimes:           make(map[string]RuntimeSnapshotProvider),
		pools:              make(map[string]PoolSnapshotProvider),
		runtimeTasks:       runtimeTasks,
		runtimeGroupTotal:  runtimeGroupTotal,
		runtimeGroupActive: runtimeGroupActive,
		runtimeMemoryUsed:  runtimeMemoryUsed,
		runtimeUptime:      runtimeUptime,
		poolQueued:         poolQueued,
		poolActive:         poolActive,
		poolCapacity:       poolCapacity,
		poolCompleted:      poolCompleted,
	}, nil
}

// AddRuntime adds or replaces a runtime snapshot provider by name.
func (p *SnapshotPoller) AddRuntime(name string, provider RuntimeSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "runtime")
	p.runtimesMu.Lock()
	p.runtimes[name] = provider
	p.runtimesMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.runtimesMu.RLock()
	for name, provider := range p.runtimes {
		stats := provider.Stats()
		p.runtimeTasks.WithLabelValues(name).Set(float64(stats.TotalThreads))
		p.runtimeMemoryUsed.WithLabelValues(name).Set(stats.MemoryUsedPercent)
		p.runtimeUptime.WithLabelValues(name).Set(stats.Uptime)
		for group, gs := range stats.Groups {
			p.runtimeGroupTotal.WithLabelValues(name, group).Set(float64(gs.Total))
			p.runtimeGroupActive.WithLabelValues(name, group).Set(float64(gs.Active))
		}
	}
	p.runtimesMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolCapacity.WithLabelValues(name).Set(float64(stats.Capacity))
		p.poolCompleted.WithLabelValues(name).Set(float64(stats.Completed))
	}
	p.poolsMu.RUnlock()
}
