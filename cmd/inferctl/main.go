// inferctl is the Runtime Supervision Core's single binary: it runs the
// core (run), drives a scripted workload against it (sim), benchmarks the
// Percentile Tracker in isolation (bench percentile), and talks to a
// running core's control socket (status, list, cancel, pin-profile).
//
// Grounded on the teacher's cmd/octoreflex/main.go (daemon startup
// sequence), cmd/octoreflex-sim/main.go (scripted driver), and
// bench/cmd/latency/main.go (percentile benchmarking), unified under one
// Cobra root the way dmitriimaksimovdevelop-melisai/cmd/melisai/main.go
// structures its collect/diff/watch subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferedge/runtimecore/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:   "inferctl",
		Short: "Runtime Supervision Core: run, simulate, benchmark, and control",
		Long: `inferctl drives the on-device inference Runtime Supervision Core.

run            Start the core (scheduler, samplers, budget engine, metrics, control socket).
sim            Run a scripted synthetic workload against an in-process core.
bench          Micro-benchmarks for individual components.
status         Query a running core's control socket.
list           List queued tasks on a running core.
cancel         Cancel a queued task on a running core.
pin-profile    Pin the adaptive profile on a running core.`,
		Version: config.Version,
	}

	root.AddCommand(
		newRunCmd(),
		newSimCmd(),
		newBenchCmd(),
		newStatusCmd(),
		newListCmd(),
		newCancelCmd(),
		newPinProfileCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
