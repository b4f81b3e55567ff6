package core

import (
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const (
	DefaultMaxMemoryPercent = 85.0
	DefaultMaxGlobalTasks   = 200
	DefaultMonitorInterval  = time.Second
)

// ResourceLimits are the thresholds the resource monitor enforces.
type ResourceLimits struct {
	// MaxMemoryPercent triggers priority eviction when used memory exceeds it.
	MaxMemoryPercent float64 `toml:"max_memory_percent"`

	// MaxGlobalTasks triggers age eviction when the live task count exceeds it.
	MaxGlobalTasks int `toml:"max_global_threads"`
}

// DefaultResourceLimits returns 85% memory and 200 tasks.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryPercent: DefaultMaxMemoryPercent,
		MaxGlobalTasks:   DefaultMaxGlobalTasks,
	}
}

// Validate checks that both thresholds are usable.
func (l ResourceLimits) Validate() error {
	if l.MaxMemoryPercent <= 0 || l.MaxMemoryPercent > 100 {
		return errors.Wrapf(ErrInvalidLimits, "max_memory_percent %v out of (0, 100]", l.MaxMemoryPercent)
	}
	if l.MaxGlobalTasks <= 0 {
		return errors.Wrapf(ErrInvalidLimits, "max_global_threads %d must be positive", l.MaxGlobalTasks)
	}
	return nil
}

// withDefaults fills zero fields from DefaultResourceLimits.
func (l ResourceLimits) withDefaults() ResourceLimits {
	d := DefaultResourceLimits()
	if l.MaxMemoryPercent == 0 {
		l.MaxMemoryPercent = d.MaxMemoryPercent
	}
	if l.MaxGlobalTasks == 0 {
		l.MaxGlobalTasks = d.MaxGlobalTasks
	}
	return l
}

// =============================================================================
// Config: Configuration for Runtime
// =============================================================================

// Config holds configuration options for a Runtime.
// All collaborators are optional; if not provided, default implementations will be used.
type Config struct {
	Limits ResourceLimits

	// MonitorInterval is the resource monitor cadence. Defaults to 1s.
	MonitorInterval time.Duration

	// Host spawns tasks. Defaults to a GoroutineHost.
	Host Host

	// Memory reports host memory. Defaults to VirtualMemoryProbe.
	Memory MemoryProbe

	// Logger defaults to NewDefaultLogger().
	Logger Logger

	// Metrics defaults to NilMetrics.
	Metrics Metrics
}

// DefaultConfig returns a config with default collaborators.
func DefaultConfig() *Config {
	return &Config{
		Limits:          DefaultResourceLimits(),
		MonitorInterval: DefaultMonitorInterval,
		Host:            NewGoroutineHost(),
		Memory:          VirtualMemoryProbe{},
		Logger:          NewDefaultLogger(),
		Metrics:         &NilMetrics{},
	}
}

// fileConfig is the on-disk TOML shape.
type fileConfig struct {
	MaxMemoryPercent float64 `toml:"max_memory_percent"`
	MaxGlobalTasks   int     `toml:"max_global_threads"`
	MonitorInterval  string  `toml:"monitor_interval"`
}

// LoadConfigTOML parses limits and the monitor interval from TOML.
// Missing keys keep their defaults.
//
//	max_memory_percent = 90.0
//	max_global_threads = 500
//	monitor_interval = "500ms"
func LoadConfigTOML(data []byte) (ResourceLimits, time.Duration, error) {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return ResourceLimits{}, 0, errors.Wrap(err, "parse config")
	}

	limits := ResourceLimits{
		MaxMemoryPercent: fc.MaxMemoryPercent,
		MaxGlobalTasks:   fc.MaxGlobalTasks,
	}.withDefaults()
	if err := limits.Validate(); err != nil {
		return ResourceLimits{}, 0, err
	}

	interval := DefaultMonitorInterval
	if fc.MonitorInterval != "" {
		d, err := time.ParseDuration(fc.MonitorInterval)
		if err != nil {
			return ResourceLimits{}, 0, errors.Wrapf(err, "parse monitor_interval %q", fc.MonitorInterval)
		}
		if d <= 0 {
			return ResourceLimits{}, 0, errors.Errorf("monitor_interval must be positive, got %s", d)
		}
		interval = d
	}
	return limits, interval, nil
}
