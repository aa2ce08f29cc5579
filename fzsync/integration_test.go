package fzsync

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kolkov/fuzzysync/internal/fzsync/clock"
)

// busyWait spins for roughly d without sleeping, like a real race payload.
func busyWait(d time.Duration) {
	end := clock.Now() + int64(d)
	for clock.Now() < end {
	}
}

// waitDone fails the test when the run does not finish in time.
func waitDone(t *testing.T, done <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("run did not finish in time")
	}
}

// TestPairRunIterationBudget tests that a run stops after exactly ExecLoops
// iterations on both threads.
func TestPairRunIterationBudget(t *testing.T) {
	t.Setenv(TimeoutFactorEnv, "")

	p := New(Config{MinSamples: 20, ExecLoops: 20, Logger: discardLogger()})

	bIters := 0
	err := p.Reset(func(ctx context.Context) {
		for p.RunB() {
			p.StartRaceB()
			bIters++
			p.EndRaceB()
		}
	})
	if err != nil {
		t.Fatalf("Reset() = %v", err)
	}

	aIters := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p.RunA() {
			p.StartRaceA()
			aIters++
			p.EndRaceA()
		}
	}()
	waitDone(t, done, time.Minute)

	if aIters != 20 {
		t.Errorf("thread A ran %d iterations, want exactly 20", aIters)
	}
	if bIters != 20 {
		t.Errorf("thread B ran %d iterations, want exactly 20", bIters)
	}
	if err := p.Cleanup(); err != nil {
		t.Errorf("Cleanup() = %v", err)
	}
}

// TestPairRunTimeBudget tests that a run with a slow payload stops close to
// its wall-clock budget.
func TestPairRunTimeBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("timed run")
	}
	t.Setenv(TimeoutFactorEnv, "")

	p := New(Config{ExecTime: time.Second, MinSamples: 20, Logger: discardLogger()})
	err := p.Reset(func(ctx context.Context) {
		for p.RunB() {
			p.StartRaceB()
			p.EndRaceB()
		}
	})
	if err != nil {
		t.Fatalf("Reset() = %v", err)
	}

	start := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p.RunA() {
			p.StartRaceA()
			time.Sleep(10 * time.Millisecond)
			p.EndRaceA()
		}
	}()
	waitDone(t, done, 30*time.Second)

	elapsed := time.Since(start)
	if elapsed < 900*time.Millisecond {
		t.Errorf("run stopped after %v, want it to use the 1s budget", elapsed)
	}
	if elapsed > 5*time.Second {
		t.Errorf("run took %v, want it to stop near the 1s budget", elapsed)
	}
}

// TestPairRunCutsSamplingAtHalfBudget tests that a pair still inside its
// mandatory sampling count once half the time budget is gone stops the
// count, announces it exactly once and keeps running.
func TestPairRunCutsSamplingAtHalfBudget(t *testing.T) {
	t.Setenv(TimeoutFactorEnv, "")

	h := &recordingHandler{}
	p := New(Config{
		MinSamples: 64,
		ExecTime:   10 * time.Second,
		Logger:     slog.New(h),
	})
	if err := p.Reset(nil); err != nil {
		t.Fatalf("Reset(nil) = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.RunB()
		p.RunB()
	}()

	// Backdate the run so that less than half the budget remains while the
	// mandatory sampling count is still untouched.
	p.budgetStart -= int64(6 * time.Second)

	const cutMsg = "Stopped sampling, reached half of the total time budget"

	if !p.RunA() {
		t.Fatal("RunA() = false with budget left, want the run to continue")
	}
	if p.remaining != 0 {
		t.Errorf("remaining = %d after the half-budget cut, want 0", p.remaining)
	}
	if p.phase != PhaseSampling {
		t.Errorf("phase = %v after the cut, want %v until the ratios settle",
			p.phase, PhaseSampling)
	}
	if got := h.count(cutMsg); got != 1 {
		t.Errorf("half-budget cut announced %d times, want 1", got)
	}

	if !p.RunA() {
		t.Fatal("RunA() = false on the following iteration, want the run to continue")
	}
	waitDone(t, done, time.Minute)

	if got := h.count(cutMsg); got != 1 {
		t.Errorf("half-budget cut announced %d times across iterations, want 1", got)
	}
}

// TestPairRunConverges tests that a full run over busy payloads of distinct
// lengths reaches PhaseConverged and sweeps the delay through both signs.
//
// AvgAlpha 1 makes the averages track the latest sample exactly, so the
// deviation ratios are zero by construction and convergence cannot be
// defeated by host noise.
func TestPairRunConverges(t *testing.T) {
	t.Setenv(TimeoutFactorEnv, "")

	p := New(Config{
		AvgAlpha:   1,
		MinSamples: 20,
		ExecLoops:  200,
		Logger:     discardLogger(),
	})

	err := p.Reset(func(ctx context.Context) {
		for p.RunB() {
			p.StartRaceB()
			busyWait(50 * time.Microsecond)
			p.EndRaceB()
		}
	})
	if err != nil {
		t.Fatalf("Reset() = %v", err)
	}

	sawNegative, sawPositive := false, false
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p.RunA() {
			p.StartRaceA()
			if p.Phase() == PhaseConverged {
				sawNegative = sawNegative || p.delay < 0
				sawPositive = sawPositive || p.delay > 0
			}
			busyWait(150 * time.Microsecond)
			p.EndRaceA()
		}
	}()
	waitDone(t, done, time.Minute)

	if got := p.Phase(); got != PhaseConverged {
		t.Fatalf("Phase() = %v after the run, want %v", got, PhaseConverged)
	}
	if !sawNegative || !sawPositive {
		t.Errorf("delay signs seen: negative=%v positive=%v, want the sweep to cover both",
			sawNegative, sawPositive)
	}
}

// TestPairExternalThreadB tests a run where the caller drives both threads
// itself after arming the pair with Reset(nil).
func TestPairExternalThreadB(t *testing.T) {
	t.Setenv(TimeoutFactorEnv, "")

	p := New(Config{MinSamples: 20, ExecLoops: 40, Logger: discardLogger()})
	if err := p.Reset(nil); err != nil {
		t.Fatalf("Reset(nil) = %v", err)
	}

	aIters, bIters := 0, 0
	g := new(errgroup.Group)
	g.Go(func() error {
		for p.RunA() {
			p.StartRaceA()
			aIters++
			p.EndRaceA()
		}
		return nil
	})
	g.Go(func() error {
		for p.RunB() {
			p.StartRaceB()
			bIters++
			p.EndRaceB()
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run = %v", err)
		}
	case <-time.After(time.Minute):
		t.Fatal("external-mode run did not finish in time")
	}

	if aIters != 40 || bIters != 40 {
		t.Errorf("iterations: A=%d B=%d, want 40 on both threads", aIters, bIters)
	}
	if err := p.Cleanup(); err != nil {
		t.Errorf("Cleanup() = %v, want nil with no engine-managed thread", err)
	}
}

// BenchmarkPairIteration measures one full engine iteration over empty race
// regions: three rendezvous, two timestamps per thread and the statistics
// fold.
func BenchmarkPairIteration(b *testing.B) {
	b.Setenv(TimeoutFactorEnv, "")

	p := New(Config{
		MinSamples: 20,
		ExecLoops:  math.MaxInt32, // never binds within a benchmark run
		Logger:     discardLogger(),
	})
	err := p.Reset(func(ctx context.Context) {
		for p.RunB() {
			p.StartRaceB()
			p.EndRaceB()
		}
	})
	if err != nil {
		b.Fatalf("Reset() = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !p.RunA() {
			b.Fatal("budget exhausted mid-benchmark")
		}
		p.StartRaceA()
		p.EndRaceA()
	}
	b.StopTimer()

	// Release thread B from its RunB rendezvous before joining it.
	p.exit.Store(true)
	p.bar.WaitA(nil)
	if err := p.Cleanup(); err != nil {
		b.Fatalf("Cleanup() = %v", err)
	}
}

// TestPairBareWait tests the extra lockstep point: values published by
// thread A before WaitA are visible to thread B after WaitB, iteration by
// iteration.
func TestPairBareWait(t *testing.T) {
	t.Setenv(TimeoutFactorEnv, "")

	p := New(Config{MinSamples: 20, ExecLoops: 20, Logger: discardLogger()})

	token := 0
	var got []int
	err := p.Reset(func(ctx context.Context) {
		for p.RunB() {
			p.StartRaceB()
			p.WaitB()
			got = append(got, token)
			p.EndRaceB()
		}
	})
	if err != nil {
		t.Fatalf("Reset() = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		i := 0
		for p.RunA() {
			p.StartRaceA()
			token = i
			p.WaitA()
			p.EndRaceA()
			i++
		}
	}()
	waitDone(t, done, time.Minute)

	if len(got) != 20 {
		t.Fatalf("thread B observed %d tokens, want 20", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}
