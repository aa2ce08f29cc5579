package fzsync

import (
	"log/slog"
	"time"

	"github.com/kolkov/fuzzysync/internal/fzsync/clock"
)

// samplingSlice is the fraction of the time budget the mandatory sampling
// phase may consume before it is cut short, so that a run whose statistics
// never settle still spends at least half the budget sweeping delays.
const samplingSlice = 0.5

// RunA starts one iteration on thread A and reports whether the run
// continues.
//
// The budgets are checked here, once per iteration. When the wall-clock
// budget is spent or the iteration count exceeds ExecLoops, RunA raises the
// exit flag, completes one more rendezvous so thread B observes it, tears
// thread B down and reports false. A teardown failure is logged, not
// returned; the final Cleanup call surfaces it.
//
// RunA also cuts the mandatory sampling phase short once half the time
// budget is gone, keeping a noisy host from eating the whole budget before
// any randomized iterations happen.
func (p *Pair) RunA() bool {
	stop := false
	rem := p.remainingBudget()

	if time.Duration(float64(p.cfg.ExecTime)*samplingSlice) > rem &&
		p.phase == PhaseSampling && p.remaining > 0 {
		p.remaining = 0
		p.logStats("Stopped sampling, reached half of the total time budget",
			slog.Int("sampled", p.execLoop),
			slog.Int("required", p.cfg.MinSamples))
	}

	if rem == 0 {
		p.cfg.Logger.Info("Exceeded execution time, requesting exit",
			slog.Int("loop", p.execLoop))
		stop = true
	}

	p.execLoop++
	if p.execLoop > p.cfg.ExecLoops {
		p.cfg.Logger.Info("Exceeded execution loops, requesting exit",
			slog.Int("loops", p.cfg.ExecLoops))
		stop = true
	}

	p.exit.Store(stop)
	p.bar.WaitA(nil)

	if stop {
		if err := p.Cleanup(); err != nil {
			p.cfg.Logger.Warn("Thread B teardown failed",
				slog.Any("err", err))
		}
		return false
	}
	return true
}

// RunB starts one iteration on thread B and reports whether the run
// continues. It completes the rendezvous matching RunA and then reads the
// exit flag published before it.
func (p *Pair) RunB() bool {
	p.bar.WaitB(nil)
	return !p.exit.Load()
}

// WaitA is a bare rendezvous from thread A, outside the per-iteration
// protocol. Payloads that need an extra lockstep point inside the race
// region call WaitA and WaitB at matching places in the two threads.
func (p *Pair) WaitA() {
	p.bar.WaitA(nil)
}

// WaitB is thread B's half of the bare rendezvous; see WaitA.
func (p *Pair) WaitB() {
	p.bar.WaitB(nil)
}

// remainingBudget reports how much of the time budget is left, rounded up
// to a whole second while any time remains at all, and zero once the budget
// is spent. Whole seconds are all the resolution the budget decisions need.
func (p *Pair) remainingBudget() time.Duration {
	elapsed := time.Duration(clock.Now() - p.budgetStart)
	rem := p.cfg.ExecTime - elapsed
	if rem <= 0 {
		return 0
	}
	return (rem + time.Second - 1) / time.Second * time.Second
}
