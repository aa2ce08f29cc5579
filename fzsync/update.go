package fzsync

import (
	"context"
	"log/slog"
	"math"
)

// update folds the previous iteration's measurements and computes the
// current iteration's delay. StartRaceA is its only caller.
//
// The delay always starts from the bias. While the pair is sampling, or
// whenever any deviation ratio sits above the bound again before the phase
// has settled, the iteration's samples are folded in and the delay stays at
// the bias. Once the ratios hold and the mandatory count is spent, the pair
// settles exactly once: into PhaseConverged when the end skew supports a
// time-to-spins conversion, into PhaseDelayUnavailable when it does not.
// After settling, only the delay computation keeps running.
func (p *Pair) update() {
	p.delay = p.delayBias

	maxDev := p.cfg.MaxDevRatio
	overMaxDev := p.startSkew.DevRatio > maxDev ||
		p.durA.DevRatio > maxDev ||
		p.durB.DevRatio > maxDev ||
		p.endSkew.DevRatio > maxDev ||
		p.spinsAvg.DevRatio > maxDev

	switch {
	case p.phase == PhaseSampling && (p.remaining > 0 || overMaxDev):
		p.fold()
	case p.phase != PhaseDelayUnavailable && math.Abs(p.endSkew.Avg) >= 1:
		p.randomizeDelay()
	case p.phase == PhaseSampling:
		// The threads leave their race regions within a nanosecond of
		// each other on average, so no usable per-spin time exists.
		p.phase = PhaseDelayUnavailable
		p.logStats("Can't calculate random delay, end skew is below one nanosecond")
	}

	p.spins = 0
}

// fold feeds the previous iteration's four timestamp differences and its
// spin count into the five statistics.
func (p *Pair) fold() {
	alpha := p.cfg.AvgAlpha
	p.startSkew.Update(alpha, float64(p.aStart-p.bStart))
	p.durA.Update(alpha, float64(p.aEnd-p.aStart))
	p.durB.Update(alpha, float64(p.bEnd-p.bStart))
	p.endSkew.Update(alpha, float64(p.aEnd-p.bEnd))
	p.spinsAvg.Update(alpha, float64(p.spins))

	if p.remaining > 0 {
		p.remaining--
		if p.remaining == 0 {
			p.logStats("Minimum sampling period ended")
		}
	}
}

// randomizeDelay converts the settled statistics into this iteration's
// signed spin delay and, on its first run, completes the transition into
// PhaseConverged.
//
// The time-domain delay is drawn uniformly from [-durB, durA), which over
// many iterations pairs every point of A's region with every point of B's
// region. Dividing by the per-spin time converts it into spin units, and
// the 1.1 factor stretches the sweep slightly past the observed extents to
// cover jitter at the edges.
func (p *Pair) randomizeDelay() {
	perSpinTime := math.Abs(p.endSkew.Avg) / math.Max(p.spinsAvg.Avg, 1)
	timeDelay := p.random()*(p.durA.Avg+p.durB.Avg) - p.durB.Avg
	p.delay += int(1.1 * timeDelay / perSpinTime)

	if p.phase == PhaseSampling {
		p.phase = PhaseConverged
		p.logStats("Deviation ratios settled, introducing randomness",
			slog.Float64("max_dev_ratio", p.cfg.MaxDevRatio),
			slog.Int("delay_range_min", -(int(p.durB.Avg/perSpinTime) + p.delayBias)),
			slog.Int("delay_range_max", int(p.durA.Avg/perSpinTime)-p.delayBias))
	}
}

// logStats emits one record carrying msg, any extra attributes, and the
// full measurement state.
func (p *Pair) logStats(msg string, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.Int("loop", p.execLoop),
		slog.Int("delay_bias", p.delayBias),
		slog.Any("start_skew", p.startSkew),
		slog.Any("duration_a", p.durA),
		slog.Any("duration_b", p.durB),
		slog.Any("end_skew", p.endSkew),
		slog.Any("spins", p.spinsAvg),
	}, extra...)
	p.cfg.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}
