package main

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/inferedge/runtimecore/internal/percentile"
)

// newBenchCmd builds the "bench" subcommand group. Grounded on the
// teacher's bench/cmd/latency/main.go: measure a component in isolation,
// print a percentile summary, no dependency on a running core.
func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Micro-benchmarks for individual components",
	}
	cmd.AddCommand(newBenchPercentileCmd())
	return cmd
}

func newBenchPercentileCmd() *cobra.Command {
	var (
		samples int
		meanMS  float64
		seed    int64
	)
	cmd := &cobra.Command{
		Use:   "percentile",
		Short: "Benchmark the Percentile Tracker's Record/Quantile cost under a synthetic log-normal latency distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := rand.New(rand.NewSource(seed))
			tracker := percentile.New()

			start := time.Now()
			for i := 0; i < samples; i++ {
				// log-normal latency: mostly near meanMS, occasional tail spikes.
				// sigma=0.5, with mu shifted by -sigma²/2 so the mean is meanMS.
				v := meanMS * math.Exp(0.5*rng.NormFloat64()-0.125)
				tracker.Record(v)
			}
			recordElapsed := time.Since(start)

			quantileStart := time.Now()
			p50, p95, p99 := tracker.P50(), tracker.P95(), tracker.P99()
			quantileElapsed := time.Since(quantileStart)

			fmt.Printf("samples=%d (ring capacity %d, count=%d)\n", samples, percentile.Capacity, tracker.Count())
			fmt.Printf("record: total=%s avg=%s/sample\n", recordElapsed, recordElapsed/time.Duration(samples))
			fmt.Printf("quantile: p50=%.2fms p95=%.2fms p99=%.2fms (computed in %s)\n", p50, p95, p99, quantileElapsed)
			return nil
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 10000, "Number of synthetic latency samples to record")
	cmd.Flags().Float64Var(&meanMS, "mean-ms", 120, "Mean latency in milliseconds for the synthetic distribution")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	return cmd
}
