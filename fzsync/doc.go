// Package fzsync helps a test reproduce a race condition whose trigger
// point lives inside code the test cannot instrument.
//
// Two goroutines, A (primary) and B (secondary), run a loop in which each
// iteration brackets a "race region" in both threads. The pair measures its
// own synchronization jitter with online statistics and, once the jitter is
// statistically stable, injects a randomized busy-wait delay each iteration
// so that the offset between the two regions sweeps across every alignment
// the measurements say is reachable. Given enough iterations, some of them
// land on the hidden race window.
//
// # Quick Start
//
// Thread A is the calling test; thread B is spawned by Reset:
//
//	pair := fzsync.New(fzsync.Config{})
//
//	if err := pair.Reset(func(ctx context.Context) {
//		for pair.RunB() {
//			pair.StartRaceB()
//			// do something that races with thread A's operation
//			pair.EndRaceB()
//		}
//	}); err != nil {
//		log.Fatal(err)
//	}
//
//	for pair.RunA() {
//		// setup that must happen before the race
//		pair.StartRaceA()
//		// do the racy operation
//		pair.EndRaceA()
//	}
//
// The StartRace, EndRace and Run calls all rendezvous, so each may be called
// only once per iteration. Extra synchronization points inside an iteration
// are available through WaitA and WaitB.
//
// # How the Delay Is Found
//
// Imagine the two race regions laid out in time after the starting
// rendezvous:
//
//	start_race_a
//	    ^                    end_race_a
//	    |                        ^
//	- --+------------------------+-- - -
//	    |       Operation A      |             Thread A
//	- --+------------------------+-- - -
//	- --+----------------+-------+-- - -
//	    |  Operation B   | spin  |             Thread B
//	- --+----------------+-------+-- - -
//	    |                |
//	    ^                ^
//	start_race_b     end_race_b
//
// If the race hides in the entry paths of the two operations, this already
// works: the regions start together. But if, say, B's exit path must align
// with the middle of A, the probability of hitting the window is near zero
// no matter how many iterations run. So once its measurements are stable the
// pair delays one thread's region start by a random number of spins each
// iteration:
//
//	start_race_a
//	    ^                    end_race_a
//	    |                        ^
//	- --+------------------------+-- - -
//	    |       Operation A      |             Thread A
//	- --+------------------------+-- - -
//	- --+-------+----------------+-- - -
//	    | delay |  Operation B   |             Thread B
//	- --+-------+----------------+-- - -
//	    |                        |
//	    ^                        ^
//	start_race_b             end_race_b
//
// The delay range is chosen so that any point of A's region can pair with
// any point of B's region: from minus B's duration to plus A's duration,
// in time terms. Negative delays are served by thread A, positive ones by
// thread B. To convert times into spin counts the pair uses the closing
// rendezvous of each iteration, where the early thread's spins are counted
// against the measured exit skew, giving an average cost per spin.
//
// # Sampling and Convergence
//
// All quantities in the conversion are exponential moving averages folded in
// once per iteration: the start skew, both region durations, the exit skew
// and the spin count. The pair stays in PhaseSampling for at least
// Config.MinSamples iterations and until every statistic's deviation ratio
// settles at or below Config.MaxDevRatio, then freezes the statistics and
// moves to PhaseConverged, where each iteration draws a fresh delay. If the
// measured exit skew averages under a nanosecond there is nothing to
// calibrate the conversion against; the pair moves to PhaseDelayUnavailable
// instead and keeps running with the bias alone. See AddBias for nudging
// payloads whose timing depends on their chronological order.
//
// Runs are bounded by a wall-clock budget and an iteration budget, whichever
// ends first. A run still sampling halfway through its time budget has the
// mandatory sampling cut short so that converged iterations still happen.
//
// # Scheduling Requirements
//
// Both threads busy-wait at every rendezvous and never block on the
// scheduler, which is what makes nanosecond-scale alignment possible at
// all. The price is two cores' worth of CPU for the duration of a run, and
// results degrade when the machine is oversubscribed. Thread B is pinned to
// an OS thread for the same reason.
//
// A goroutine cannot be killed. If a payload ignores its context and never
// returns from a blocking call, Cleanup reports ErrThreadBStuck and the
// goroutine leaks; tests that risk this should run payloads able to observe
// cancellation, or host thread B in a separate process and manage it
// through Reset(nil).
package fzsync
