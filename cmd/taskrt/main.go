// Command taskrt drives a synthetic workload through the task runtime.
//
//	taskrt run --duration 5s
//	taskrt serve --addr :2112 --config limits.toml
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "taskrt",
		Usage: "run synthetic workloads on the resource-aware task runtime",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			RunCommand(),
			ServeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
