package fzsync

import "github.com/kolkov/fuzzysync/internal/fzsync/clock"

// spinFalse and spinSink defeat the optimizer in spinDelay. spinFalse is
// never set, so the store to spinSink never runs, but the compiler cannot
// prove that and has to keep the loop and its counter alive.
var (
	spinFalse bool
	spinSink  int
)

// spinDelay burns n passes of a bare counting loop. It must not sleep,
// yield or block: its purpose is to push the region start later by a small,
// roughly constant amount per pass.
//
//go:noinline
func spinDelay(n int) {
	for i := 0; i < n; i++ {
		if spinFalse {
			spinSink = i
		}
	}
}

// StartRaceA marks the start of thread A's race region. Call it immediately
// before the racy operation.
//
// It folds the previous iteration's measurements into the statistics (the
// fold belongs to thread A; thread B is parked in StartRaceB's rendezvous
// for its whole duration), rendezvouses so both regions launch from a
// common point, serves thread A's share of the delay and timestamps the
// region start.
func (p *Pair) StartRaceA() {
	p.update()
	p.bar.WaitA(nil)

	if p.delay < 0 {
		spinDelay(-p.delay)
	}
	p.aStart = clock.Now()
}

// EndRaceA marks the end of thread A's race region. Call it immediately
// after the racy operation.
//
// The closing rendezvous is the counted one: whichever side gets here first
// spins until the other arrives, and the spin count calibrates how many
// spins one nanosecond of skew is worth.
func (p *Pair) EndRaceA() {
	p.aEnd = clock.Now()
	p.bar.WaitA(&p.spins)
}

// StartRaceB marks the start of thread B's race region, mirroring
// StartRaceA. Thread B serves the positive half of the delay and never
// folds statistics.
func (p *Pair) StartRaceB() {
	p.bar.WaitB(nil)

	if p.delay > 0 {
		spinDelay(p.delay)
	}
	p.bStart = clock.Now()
}

// EndRaceB marks the end of thread B's race region, mirroring EndRaceA.
func (p *Pair) EndRaceB() {
	p.bEnd = clock.Now()
	p.bar.WaitB(&p.spins)
}
