package fzsync

// Phase describes where a Pair is in its measurement lifecycle.
//
// A run starts in PhaseSampling and leaves it at most once, for either
// PhaseConverged or PhaseDelayUnavailable. Those two are terminal until the
// next Reset, and the statistics freeze at the transition: converged
// measurements are the calibration the delays are computed from, so folding
// further samples into them would move the calibration mid-sweep.
type Phase int

const (
	// PhaseSampling means the engine is still measuring. Each iteration
	// folds new samples and the delay stays at the bias.
	PhaseSampling Phase = iota

	// PhaseConverged means the statistics are stable and every iteration
	// now draws a fresh randomized delay.
	PhaseConverged

	// PhaseDelayUnavailable means the statistics settled but the average
	// end skew is under one nanosecond, leaving no usable time-to-spins
	// conversion. The delay stays at the bias.
	PhaseDelayUnavailable
)

// String returns the phase name for logs and test output.
func (p Phase) String() string {
	switch p {
	case PhaseSampling:
		return "Sampling"
	case PhaseConverged:
		return "Converged"
	case PhaseDelayUnavailable:
		return "DelayUnavailable"
	default:
		return "Unknown"
	}
}
