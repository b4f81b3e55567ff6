package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-runtime/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskSpawnedTotal        *prom.CounterVec
	taskCrashTotal          *prom.CounterVec
	evictionTotal           *prom.CounterVec
	poolQueueDepth          *prom.GaugeVec
	poolItemDurationSeconds *prom.HistogramVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskruntime"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	spawnedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_spawned_total",
		Help:      "Total number of managed tasks spawned.",
	}, []string{"group"})
	crashVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_crash_total",
		Help:      "Total number of managed tasks that returned an error or panicked.",
	}, []string{"group"})
	evictionVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "eviction_total",
		Help:      "Total number of tasks killed by the resource monitor.",
	}, []string{"reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_queue_depth",
		Help:      "Current number of queued items per pool.",
	}, []string{"pool"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "pool_item_duration_seconds",
		Help:      "Pool item execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"pool", "outcome"})

	var err error
	if spawnedVec, err = registerCollector(reg, spawnedVec); err != nil {
		return nil, err
	}
	if crashVec, err = registerCollector(reg, crashVec); err != nil {
		return nil, err
	}
	if evictionVec, err = registerCollector(reg, evictionVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskSpawnedTotal:        spawnedVec,
		taskCrashTotal:          crashVec,
		evictionTotal:           evictionVec,
		poolQueueDepth:          queueDepthVec,
		poolItemDurationSeconds: durationVec,
	}, nil
}

// RecordTaskSpawned counts a managed task spawn.
func (m *MetricsExporter) RecordTaskSpawned(group string) {
	if m == nil {
		return
	}
	m.taskSpawnedTotal.WithLabelValues(normalizeLabel(group, "none")).Inc()
}

// RecordTaskCrash counts a failed managed task. Task names are not used as a
// label because generated names are unbounded.
func (m *MetricsExporter) RecordTaskCrash(name string, group string) {
	if m == nil {
		return
	}
	m.taskCrashTotal.WithLabelValues(normalizeLabel(group, "none")).Inc()
}

// RecordEviction counts tasks killed by the resource monitor.
func (m *MetricsExporter) RecordEviction(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.evictionTotal.WithLabelValues(normalizeLabel(reason, "unknown")).Add(float64(count))
}

// RecordPoolQueueDepth records queue depth.
func (m *MetricsExporter) RecordPoolQueueDepth(pool string, depth int) {
	if m == nil {
		return
	}
	m.poolQueueDepth.WithLabelValues(normalizeLabel(pool, "unknown")).Set(float64(depth))
}

// RecordPoolItemDuration records pool item execution duration.
func (m *MetricsExporter) RecordPoolItemDuration(pool string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.poolItemDurationSeconds.WithLabelValues(normalizeLabel(pool, "unknown"), outcomeLabel(failed)).Observe(duration.Seconds())
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func outcomeLabel(failed bool) string {
	if failed {
		return "failed"
	}
	return "ok"
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
