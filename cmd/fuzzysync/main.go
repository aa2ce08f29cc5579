// Package main implements the fuzzysync CLI tool.
//
// The fuzzysync tool exercises the fuzzy synchronization engine outside a
// test suite. It ships two workloads:
//
//  1. demo  - hunts a textbook lost-update race and reports the hits
//  2. probe - measures how well the engine synchronizes on this host
//
// Usage:
//
//	fuzzysync demo --time 30s
//	fuzzysync probe --time 10s --verbose
//
// Both commands log the engine's phase transitions, so they double as a
// quick health check of a host's clock and scheduler before trusting a
// longer reproduction run.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/kolkov/fuzzysync/fzsync"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		demoCommand(os.Args[2:])
	case "probe":
		probeCommand(os.Args[2:])
	case "version", "--version", "-v":
		info := fzsync.GetInfo()
		fmt.Printf("fuzzysync version %s (%s, raw clock: %v)\n",
			info.Version, info.Algorithm, info.RawClock)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Colorized records go to stderr so the
// result lines on stdout stay machine-readable.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}

func printUsage() {
	fmt.Print(`fuzzysync - Fuzzy Synchronization Workbench

USAGE:
    fuzzysync <command> [flags]

COMMANDS:
    demo       Hunt a textbook lost-update race with the engine
    probe      Measure synchronization quality on this host
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Find lost updates within a 30 second budget
    fuzzysync demo --time 30s

    # Short calibration probe with verbose statistics
    fuzzysync probe --time 5s --verbose

    # Stretch every budget on a loaded CI box
    FZSYNC_TIMEOUT_FACTOR=3 fuzzysync demo

ABOUT:
    fuzzysync reproduces race conditions whose trigger point cannot be
    instrumented directly. Two threads run their operations in lockstep
    while the engine measures the timing jitter between them; once the
    statistics settle, it injects randomized spin delays that slide the
    two operations across each other until the racy interleaving fires.

    Race reproduction is probabilistic and depends on the host: more
    cores, an idle machine and a steady clock all raise the hit rate.
    Use 'fuzzysync probe' to judge a host before a long hunt.

FOR MORE INFORMATION:
    Repository: https://github.com/kolkov/fuzzysync
    Documentation: https://github.com/kolkov/fuzzysync/blob/main/README.md
    Issues: https://github.com/kolkov/fuzzysync/issues

`)
}
