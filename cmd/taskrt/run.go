package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Swind/go-task-runtime/core"
	"github.com/urfave/cli/v2"
)

func workloadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "duration",
			Aliases: []string{"d"},
			Value:   3 * time.Second,
			Usage:   "how long to run the workload",
		},
		&cli.IntFlag{
			Name:  "pool-size",
			Value: 4,
			Usage: "bounded pool capacity",
		},
		&cli.IntFlag{
			Name:  "jobs",
			Value: 8,
			Usage: "pool jobs scheduled every 100ms",
		},
	}
}

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "run the synthetic workload and print runtime stats as JSON",
		Flags:  workloadFlags(),
		Action: RunAction,
	}
}

type runReport struct {
	Duration string              `json:"duration"`
	Limits   core.ResourceLimits `json:"limits"`
	Pool     summary             `json:"pool"`
	Crashes  int                 `json:"crashes"`
	Stats    core.Stats          `json:"stats"`
}

func RunAction(c *cli.Context) error {
	if c.Int("pool-size") <= 0 {
		return cli.Exit("pool-size must be positive", 1)
	}

	rt, stop, err := startRuntime(c.Context, c, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer stop()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("duration"))
	defer cancel()

	w := newWorkload(rt, c.Int("pool-size"), c.Int("jobs"))
	if err := w.Run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	report := runReport{
		Duration: c.Duration("duration").String(),
		Limits:   rt.Limits(),
		Pool:     w.Finish(),
		Crashes:  len(rt.RecentCrashes(0)),
		Stats:    rt.Stats(),
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
