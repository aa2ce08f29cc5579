// demo.go implements the 'fuzzysync demo' command.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kolkov/fuzzysync/fzsync"
	"github.com/kolkov/fuzzysync/internal/fzsync/clock"
)

// demoCommand implements the 'fuzzysync demo' command.
//
// It runs the engine against a deliberately racy counter: both threads
// read-modify-write it with a small busy gap between the read and the
// write-back. Every lost increment is one observed hit of the race.
//
// Example:
//
//	fuzzysync demo --time 30s
//	fuzzysync demo --loops 500000 --bias 10
func demoCommand(args []string) {
	flags := pflag.NewFlagSet("demo", pflag.ExitOnError)
	execTime := flags.Duration("time", 30*time.Second, "wall-clock budget for the hunt")
	execLoops := flags.Int("loops", 200_000, "iteration budget for the hunt")
	minSamples := flags.Int("min-samples", fzsync.DefaultMinSamples, "mandatory sampling iterations")
	bias := flags.Int("bias", 0, "initial delay bias in spin units")
	verbose := flags.Bool("verbose", false, "debug-level logging")
	if err := flags.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	pair := fzsync.New(fzsync.Config{
		ExecTime:   *execTime,
		ExecLoops:  *execLoops,
		MinSamples: *minSamples,
		DelayBias:  *bias,
		Logger:     logger,
	})

	// The racy payload. The busy gap between the read and the write-back
	// widens the window the delay sweep has to land in.
	counter := 0
	increment := func(gap time.Duration) {
		c := counter
		spinFor(gap)
		counter = c + 1
	}

	err := pair.Reset(func(ctx context.Context) {
		for pair.RunB() {
			pair.StartRaceB()
			increment(2 * time.Microsecond)
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
		increment(3 * time.Microsecond)
		pair.EndRaceA()
		iterations++
	}

	lost := 2*iterations - counter
	logger.Info("Hunt finished",
		slog.Int("iterations", iterations),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
		slog.String("phase", pair.Phase().String()),
		slog.Int("lost_updates", lost))

	if lost == 0 {
		fmt.Println("no lost updates observed; try a longer --time or an idler machine")
		os.Exit(1)
	}
	fmt.Printf("reproduced %d lost updates in %d iterations\n", lost, iterations)
}

// spinFor busy-waits for roughly d, standing in for the span between a racy
// read and its write-back.
func spinFor(d time.Duration) {
	end := clock.Now() + int64(d)
	for clock.Now() < end {
	}
}
