package main

import (
	"context"
	"os"

	"github.com/Swind/go-task-runtime/core"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "TOML file with max_memory_percent, max_global_threads and monitor_interval",
			EnvVars: []string{"TASKRT_CONFIG"},
		},
		&cli.Float64Flag{
			Name:  "max-memory-percent",
			Usage: "override the memory eviction threshold",
		},
		&cli.IntFlag{
			Name:  "max-tasks",
			Usage: "override the live task limit",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	}
}

// buildConfig merges the config file with flag overrides. Flags win.
func buildConfig(c *cli.Context) (*core.Config, error) {
	config := core.DefaultConfig()

	if path := c.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		limits, interval, err := core.LoadConfigTOML(data)
		if err != nil {
			return nil, errors.Wrapf(err, "load config %s", path)
		}
		config.Limits = limits
		config.MonitorInterval = interval
	}

	if c.IsSet("max-memory-percent") {
		config.Limits.MaxMemoryPercent = c.Float64("max-memory-percent")
	}
	if c.IsSet("max-tasks") {
		config.Limits.MaxGlobalTasks = c.Int("max-tasks")
	}
	if err := config.Limits.Validate(); err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Bool("debug") {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	config.Logger = core.NewZapLogger(zl)

	return config, nil
}

// startRuntime builds and starts a runtime from the command line. The returned
// stop func kills every task, stops the monitor and flushes the logger.
func startRuntime(ctx context.Context, c *cli.Context, metrics core.Metrics) (*core.Runtime, func(), error) {
	config, err := buildConfig(c)
	if err != nil {
		return nil, nil, err
	}
	if metrics != nil {
		config.Metrics = metrics
	}

	rt := core.NewRuntime(config)
	if err := rt.Initialize(config.Limits); err != nil {
		return nil, nil, err
	}
	rt.Start(ctx)

	stop := func() {
		rt.KillAll()
		rt.Close()
		if zl, ok := config.Logger.(*core.ZapLogger); ok {
			_ = zl.Zap().Sync()
		}
	}
	return rt, stop, nil
}
