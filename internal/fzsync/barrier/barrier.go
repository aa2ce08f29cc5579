// Package barrier implements the two-counter rendezvous point that keeps the
// engine's two threads in lockstep.
//
// Each side owns one counter. A wait increments the peer's counter and then
// spins until the caller's own counter has caught up, so at any moment the
// side whose counter is numerically behind is the one waiting. Spinning
// yields the processor on every pass and can count the passes, which the
// engine uses to calibrate how much time one spin costs.
//
// No blocking primitive is ever used. Queue-based waits (channels, mutexes,
// futexes) wake with scheduler latency that varies by microseconds, which
// would swamp the nanosecond-scale skew the statistics built on this barrier
// are trying to measure.
package barrier

import (
	"math"
	"runtime"
	"sync/atomic"
)

// Barrier is a reusable rendezvous point for exactly two threads, A and B.
//
// The zero value is ready to use with both counters at zero. A Barrier must
// not be copied after first use.
type Barrier struct {
	a atomic.Int32
	b atomic.Int32
}

// WaitA enters the rendezvous from side A and returns once side B has
// entered the matching wait. If spins is non-nil it is incremented once per
// spin-loop pass spent waiting.
//
// Waits carry no timeout: a peer that never arrives leaves the caller
// spinning. Bounding the run is the loop controller's job, not the
// barrier's.
func (bar *Barrier) WaitA(spins *int32) {
	wait(&bar.a, &bar.b, spins)
}

// WaitB enters the rendezvous from side B, symmetric to WaitA.
func (bar *Barrier) WaitB(spins *int32) {
	wait(&bar.b, &bar.a, spins)
}

// Reset returns both counters to zero. It must only be called while neither
// side is inside a wait.
func (bar *Barrier) Reset() {
	bar.a.Store(0)
	bar.b.Store(0)
}

// wait synchronizes one side of the rendezvous. our is the calling side's
// counter, other the peer's.
//
// The common path increments the peer's counter and spins until our own has
// caught up. When the increment lands on MaxInt32 the wraparound path runs
// instead, and since both counters advance once per rendezvous, the peer is
// running it for the opposite counter at the same time: hold until our own
// counter has either also reached MaxInt32 or already been reset by the
// peer, reset the peer's counter, then hold again until the peer's reset of
// our counter is visible. Splitting the reset into these two holds keeps the
// invariant that the behind side has the smaller counter, so neither side
// can slip a whole rendezvous ahead across the boundary.
func wait(our, other *atomic.Int32, spins *int32) {
	if other.Add(1) == math.MaxInt32 {
		for v := our.Load(); v > 0 && v < math.MaxInt32; v = our.Load() {
			if spins != nil {
				*spins++
			}
			runtime.Gosched()
		}

		other.Store(0)

		for our.Load() > 1 {
			runtime.Gosched()
		}
	} else {
		for our.Load() < other.Load() {
			if spins != nil {
				*spins++
			}
			runtime.Gosched()
		}
	}
}
