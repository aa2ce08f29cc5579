// probe.go implements the 'fuzzysync probe' command.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kolkov/fuzzysync/fzsync"
)

// probeCommand implements the 'fuzzysync probe' command.
//
// It runs the engine with empty race regions, so the statistics it settles
// on describe nothing but the engine's own synchronization quality on this
// host. The convergence announcement in the log carries the raw numbers;
// the verdict line sums up whether the host can support a delay sweep.
//
// Example:
//
//	fuzzysync probe --time 5s --verbose
func probeCommand(args []string) {
	flags := pflag.NewFlagSet("probe", pflag.ExitOnError)
	execTime := flags.Duration("time", 10*time.Second, "wall-clock budget for the probe")
	execLoops := flags.Int("loops", 100_000, "iteration budget for the probe")
	minSamples := flags.Int("min-samples", fzsync.DefaultMinSamples, "mandatory sampling iterations")
	verbose := flags.Bool("verbose", false, "debug-level logging")
	if err := flags.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	pair := fzsync.New(fzsync.Config{
		ExecTime:   *execTime,
		ExecLoops:  *execLoops,
		MinSamples: *minSamples,
		Logger:     newLogger(*verbose),
	})

	err := pair.Reset(func(ctx context.Context) {
		for pair.RunB() {
			pair.StartRaceB()
			pair.EndRaceB()
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	iterations := 0
	for pair.RunA() {
		pair.StartRaceA()
		pair.EndRaceA()
		iterations++
	}
	elapsed := time.Since(start)

	fmt.Printf("phase:      %s\n", pair.Phase())
	fmt.Printf("iterations: %d\n", iterations)
	fmt.Printf("rate:       %.0f iterations/s\n", float64(iterations)/elapsed.Seconds())

	switch pair.Phase() {
	case fzsync.PhaseConverged:
		fmt.Println("verdict:    host supports randomized delay injection")
	case fzsync.PhaseDelayUnavailable:
		fmt.Println("verdict:    regions end too close together for a delay sweep")
	default:
		fmt.Println("verdict:    statistics never settled; host is too noisy")
		os.Exit(1)
	}
}
