package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Swind/go-task-runtime/core"
	obs "github.com/Swind/go-task-runtime/observability/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func ServeCommand() *cli.Command {
	flags := append(workloadFlags(),
		&cli.StringFlag{
			Name:  "addr",
			Value: ":2112",
			Usage: "listen address for /metrics",
		},
		&cli.DurationFlag{
			Name:  "poll-interval",
			Value: time.Second,
			Usage: "stats snapshot interval",
		},
	)
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the workload and expose Prometheus metrics until interrupted",
		Flags:  flags,
		Action: ServeAction,
	}
}

// ServeAction runs the workload next to an HTTP server exposing /metrics. It
// stops on SIGINT or SIGTERM, or after --duration when that flag is given.
func ServeAction(c *cli.Context) error {
	if c.Int("pool-size") <= 0 {
		return cli.Exit("pool-size must be positive", 1)
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if d := c.Duration("duration"); d > 0 && c.IsSet("duration") {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, d)
		defer cancelTimeout()
	}

	reg := prometheus.NewRegistry()
	exporter, err := obs.NewMetricsExporter("taskruntime", reg, obs.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	poller, err := obs.NewSnapshotPoller(reg, c.Duration("poll-interval"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	rt, stop, err := startRuntime(ctx, c, exporter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer stop()

	w := newWorkload(rt, c.Int("pool-size"), c.Int("jobs"))
	poller.AddRuntime("default", rt)
	poller.AddPool(w.pool.Name(), w.pool)
	poller.Start(ctx)
	defer poller.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: c.String("addr"), Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.Logger().Info("serving metrics", core.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	s := w.Finish()
	fmt.Fprintf(c.App.Writer, "workload stopped: ok=%d failed=%d\n", s.OK, s.Failed)
	return nil
}
