// Package stat implements the online sample statistic the engine measures
// synchronization jitter with.
//
// Each tracked quantity (timing skew, race region duration, spin count) keeps
// an exponential moving average together with an exponentially weighted mean
// absolute deviation. The ratio between the two is the stability criterion:
// once every tracked statistic's ratio has fallen below a configured bound,
// the measurements are steady enough to derive spin delays from.
//
// Key operations:
//   - Update: fold one sample into the average and deviation
//   - DevRatio: scale-free stability measure |AvgDev / Avg|
//
// A Stat is a plain value type with no synchronization of its own. The engine
// guarantees single-writer access: only thread A updates statistics, and only
// while thread B is parked in a rendezvous.
package stat

import (
	"log/slog"
	"math"
)

// Stat tracks one quantity as an exponential moving average with a derived
// stability ratio.
//
// Avg and AvgDev decay at the same rate alpha: a high alpha favors recent
// samples, a low alpha favors history. DevRatio is recomputed on every update
// as |AvgDev / Avg|, or 0 while Avg is 0, so callers can compare it against a
// relative tolerance regardless of the quantity's scale or sign.
type Stat struct {
	// Avg is the exponential moving average of the samples.
	Avg float64

	// AvgDev is the exponentially weighted mean absolute deviation of the
	// samples from Avg.
	AvgDev float64

	// DevRatio is |AvgDev / Avg|, or 0 while Avg is 0.
	DevRatio float64
}

// Update folds one sample into the statistic:
//
//	Avg'    = alpha*sample + (1-alpha)*Avg
//	AvgDev' = alpha*|Avg' - sample| + (1-alpha)*AvgDev
//
// The average moves first and the deviation is measured against the moved
// average, so a drifting series keeps a visible deviation until the average
// has actually caught up with it.
func (s *Stat) Update(alpha, sample float64) {
	s.Avg = alpha*sample + (1-alpha)*s.Avg
	s.AvgDev = alpha*math.Abs(s.Avg-sample) + (1-alpha)*s.AvgDev
	if s.Avg == 0 {
		s.DevRatio = 0
	} else {
		s.DevRatio = math.Abs(s.AvgDev / s.Avg)
	}
}

// Reset returns the statistic to its zero state.
func (s *Stat) Reset() {
	*s = Stat{}
}

// LogValue implements slog.LogValuer, rendering the statistic as one group
// attribute with avg, avg_dev and dev_ratio fields.
func (s Stat) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("avg", s.Avg),
		slog.Float64("avg_dev", s.AvgDev),
		slog.Float64("dev_ratio", s.DevRatio),
	)
}
