package fzsync

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kolkov/fuzzysync/internal/fzsync/barrier"
	"github.com/kolkov/fuzzysync/internal/fzsync/clock"
	"github.com/kolkov/fuzzysync/internal/fzsync/stat"
)

// ErrThreadBStuck reports that thread B did not return within JoinTimeout
// after being asked to stop. A goroutine cannot be force-killed, so this
// means the payload is ignoring both the exit flag and its context.
var ErrThreadBStuck = errors.New("fzsync: thread B did not exit within the join timeout")

// exitGrace is how long teardown waits for a cooperative thread B to observe
// the exit flag before cancelling its context.
const exitGrace = 100 * time.Millisecond

// Pair drives two goroutines, A and B, through a loop of race regions and
// works their start offsets toward every possible overlap.
//
// Thread A is the goroutine calling the *A methods, usually the test itself;
// thread B calls the *B methods and is either spawned by Reset or managed by
// the caller. Each iteration both threads bracket their racy operation:
//
//	for pair.RunA() {              for pair.RunB() {
//		pair.StartRaceA()              pair.StartRaceB()
//		// racy operation A            // racy operation B
//		pair.EndRaceA()                pair.EndRaceB()
//	}                              }
//
// The pair first samples its own synchronization jitter for MinSamples
// iterations and then, once all deviation ratios settle under MaxDevRatio,
// spends the rest of the budget injecting randomized spin delays that sweep
// the relative offset of the two regions across their observed extents.
//
// A Pair must not be copied. All methods are nonblocking with respect to
// each other's data: the *A methods belong to thread A, the *B methods to
// thread B, and New, Reset, Cleanup and AddBias to thread A only.
type Pair struct {
	cfg Config

	// bar synchronizes the two threads three times per iteration: once in
	// RunA/RunB, once at race start and once, counted, at race end.
	bar barrier.Barrier

	// exit is the shared stop flag, published by thread A in RunA before
	// the rendezvous and read by thread B in RunB after it.
	exit atomic.Bool

	// Per-iteration region timestamps in nanoseconds. Each is written by
	// the thread named in its prefix and read only by thread A in update;
	// the barrier's atomic chain orders every write against that read.
	aStart, aEnd int64
	bStart, bEnd int64

	// spins counts spin passes in the end-of-region rendezvous. Plain
	// (not atomic) on purpose: per rendezvous only the early side spins,
	// and a completed rendezvous separates any write from the next read
	// or reset on the other thread.
	spins int32

	// The five jitter statistics, written only by thread A.
	startSkew stat.Stat // aStart - bStart
	durA      stat.Stat // aEnd - aStart
	durB      stat.Stat // bEnd - bStart
	endSkew   stat.Stat // aEnd - bEnd
	spinsAvg  stat.Stat // spins per end-of-region rendezvous

	// phase and remaining implement the sampling lifecycle; see Phase.
	phase     Phase
	remaining int

	// delay is the current iteration's signed spin delay: negative spins
	// thread A before its region, positive spins thread B. delayBias
	// shifts the delay midpoint and survives Reset.
	delay     int
	delayBias int

	// execLoop counts iterations; budgetStart anchors the time budget.
	execLoop    int
	budgetStart int64

	// Engine-managed thread B. cancelB cancels the payload context, doneB
	// closes when the goroutine returns. Both nil when the caller manages
	// thread B itself.
	cancelB context.CancelFunc
	doneB   chan struct{}

	// random draws the uniform value for the delay calculation. Fixed in
	// tests to pin delays; defaults to rand.Float64.
	random func() float64
}

// New creates a Pair with the given configuration.
//
// Defaults fill any zero fields first, then the result is validated; New
// panics on out-of-range values since a miscalibrated measurement is worse
// than no measurement. The returned Pair is inert until Reset arms it.
//
// Example:
//
//	pair := fzsync.New(fzsync.Config{ExecTime: 10 * time.Second})
//	if err := pair.Reset(runB); err != nil {
//		// handle a stuck previous thread B
//	}
func New(cfg Config) *Pair {
	cfg = cfg.withDefaults()
	cfg.validate()
	cfg.ExecTime = scaleTimeout(cfg.ExecTime, cfg.Logger)

	return &Pair{
		cfg:       cfg,
		delayBias: cfg.DelayBias,
		random:    rand.Float64,
	}
}

// Reset prepares the pair for a fresh run and optionally spawns thread B.
//
// Any previous thread B is stopped and joined first. If that join fails the
// error is returned and nothing else happens: starting a new run while a
// stray thread B may still touch the barrier would corrupt both runs. The
// statistics, counters, delay and phase all return to their initial state.
// The delay bias is deliberately kept, since a bias calibrated for a
// particular payload stays valid across retries of that payload.
//
// When runB is non-nil it becomes thread B's entry point on a fresh
// goroutine wired to its own OS thread. The context handed to it is
// cancelled during Cleanup after a grace period, so the payload must treat
// context cancellation as a request to return. When runB is nil the caller
// runs the B side itself, typically when thread B must live in another
// process; Cleanup then has nothing to stop, and the B side learns about the
// end of the run through the RunB handshake.
//
// Reset is safe to call again between runs, including after an aborted run.
func (p *Pair) Reset(runB func(context.Context)) error {
	if err := p.Cleanup(); err != nil {
		return fmt.Errorf("fzsync: stopping previous thread B: %w", err)
	}

	p.startSkew.Reset()
	p.durA.Reset()
	p.durB.Reset()
	p.endSkew.Reset()
	p.spinsAvg.Reset()

	p.aStart, p.aEnd = 0, 0
	p.bStart, p.bEnd = 0, 0
	p.spins = 0
	p.delay = 0
	p.phase = PhaseSampling
	p.remaining = p.cfg.MinSamples
	p.execLoop = 0

	p.bar.Reset()
	p.exit.Store(false)

	if runB != nil {
		p.spawnB(runB)
	}
	p.budgetStart = clock.Now()
	return nil
}

// spawnB starts thread B. The goroutine is locked to an OS thread for the
// payload's lifetime: thread B spends most of its time in spin loops, and
// pinning it spares the scheduler from migrating a busy goroutine between
// threads mid-measurement.
func (p *Pair) spawnB(runB func(context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancelB = cancel
	p.doneB = done

	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		runB(ctx)
	}()
}

// Cleanup stops thread B and waits for it to return.
//
// If the exit flag is not yet raised, Cleanup raises it and grants a short
// grace period for a thread B still inside its run loop to observe it. The
// payload context is then cancelled, releasing a payload blocked in a
// context-aware call, and the join is bounded by JoinTimeout; on expiry
// Cleanup returns ErrThreadBStuck and keeps the handle so that a later call
// retries the join. With no engine-managed thread B it does nothing, and
// calling it repeatedly is safe.
//
// A thread B parked inside a barrier wait cannot observe cancellation, since
// barrier waits have no timeout. Orderly shutdown therefore happens through
// the RunA/RunB handshake; Cleanup's cancellation exists for payloads stuck
// in their own blocking calls.
func (p *Pair) Cleanup() error {
	if p.doneB == nil {
		return nil
	}

	if !p.exit.Load() {
		p.exit.Store(true)
		// Give a thread B still in its run loop the chance to see the
		// flag and return on its own before pulling the context.
		time.Sleep(exitGrace)
	}
	p.cancelB()

	select {
	case <-p.doneB:
	case <-time.After(p.cfg.JoinTimeout):
		return ErrThreadBStuck
	}

	p.cancelB = nil
	p.doneB = nil
	return nil
}

// AddBias adds delta spin units to the delay bias.
//
// A positive change delays thread B longer, a negative one thread A. Tests
// use it when the payloads' timing depends on their chronological order:
// samples taken while the operations run in the wrong order calibrate the
// delay range around invalid timings, and a caller that can detect the
// wrong order out of band (an errno, a return value) biases the next
// iterations back toward the right one.
//
// The adjustment takes effect while the pair is still in PhaseSampling.
// After the phase settles the bias is frozen into the calibration and later
// calls are ignored until the next Reset. Call from thread A only.
func (p *Pair) AddBias(delta int) {
	if p.phase == PhaseSampling {
		p.delayBias += delta
	}
}

// Phase reports the pair's current phase. It reflects thread A's view and
// must not be called from thread B while a run is active.
func (p *Pair) Phase() Phase {
	return p.phase
}
