package fzsync

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults for the Config fields. A zero Config runs with exactly these
// values, which suit most hardware.
const (
	// DefaultAvgAlpha is the default EMA decay rate.
	DefaultAvgAlpha = 0.25

	// DefaultMinSamples is the default mandatory sample count.
	DefaultMinSamples = 1024

	// DefaultMaxDevRatio is the default stability bound on the deviation
	// ratios.
	DefaultMaxDevRatio = 0.1

	// DefaultExecTime is the default wall-clock budget for one run.
	DefaultExecTime = 150 * time.Second

	// DefaultExecLoops is the default iteration budget for one run. Large,
	// but not so large that a fast loop never terminates.
	DefaultExecLoops = 3_000_000

	// DefaultJoinTimeout is the default bound on waiting for thread B to
	// return during Cleanup.
	DefaultJoinTimeout = 10 * time.Second
)

// TimeoutFactorEnv names the environment variable holding a float multiplier
// applied to every pair's time budget. Harnesses set it to stretch budgets
// on slow or heavily loaded machines without touching individual tests.
const TimeoutFactorEnv = "FZSYNC_TIMEOUT_FACTOR"

// configValidate checks Config structs against their range tags.
var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Config carries the tuning parameters for a Pair.
//
// Zero fields select the defaults above. Every field is range-checked when
// the Pair is created; an out-of-range value is a programmer error and makes
// New panic rather than run a miscalibrated measurement.
type Config struct {
	// AvgAlpha is the decay rate of the exponential moving averages.
	// Higher values favor recent samples over history.
	AvgAlpha float64 `validate:"gt=0,lte=1"`

	// MinSamples is the number of iterations that must be measured before
	// the engine may decide the statistics are stable.
	MinSamples int `validate:"gte=20"`

	// MaxDevRatio bounds the deviation ratio of every tracked statistic.
	// Sampling continues until all five ratios are at or below this value.
	MaxDevRatio float64 `validate:"gt=0,lte=1"`

	// ExecTime is the wall-clock budget for one run. The run stops once it
	// is spent regardless of progress, and a run still sampling when half
	// of it is spent has its mandatory sampling cut short.
	ExecTime time.Duration `validate:"gte=1s"`

	// ExecLoops is the iteration budget for one run.
	ExecLoops int `validate:"gte=20"`

	// DelayBias shifts the midpoint of the randomized delay, in spin
	// units. Positive values delay thread B longer, negative thread A.
	// See AddBias for adjusting it mid-run.
	DelayBias int

	// JoinTimeout bounds how long Cleanup waits for thread B to return
	// after cancellation before reporting ErrThreadBStuck.
	JoinTimeout time.Duration `validate:"gte=0"`

	// Logger receives phase-transition and budget diagnostics. nil selects
	// slog.Default().
	Logger *slog.Logger `validate:"-"`
}

// withDefaults returns the config with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.AvgAlpha == 0 {
		c.AvgAlpha = DefaultAvgAlpha
	}
	if c.MinSamples == 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.MaxDevRatio == 0 {
		c.MaxDevRatio = DefaultMaxDevRatio
	}
	if c.ExecTime == 0 {
		c.ExecTime = DefaultExecTime
	}
	if c.ExecLoops == 0 {
		c.ExecLoops = DefaultExecLoops
	}
	if c.JoinTimeout == 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// validate panics on out-of-range fields.
func (c Config) validate() {
	if err := configValidate.Struct(c); err != nil {
		panic(fmt.Sprintf("fzsync: invalid config: %v", err))
	}
}

// scaleTimeout applies the TimeoutFactorEnv multiplier to the validated time
// budget. Factors that do not parse, are not positive and finite, or would
// scale the budget past the largest representable duration are ignored with
// a warning.
func scaleTimeout(d time.Duration, logger *slog.Logger) time.Duration {
	raw := os.Getenv(TimeoutFactorEnv)
	if raw == "" {
		return d
	}
	factor, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(factor) || factor <= 0 {
		logger.Warn("Ignoring invalid timeout factor",
			slog.String("var", TimeoutFactorEnv),
			slog.String("value", raw))
		return d
	}

	// A product at or past MaxInt64, +Inf included, would wrap the budget
	// negative in the float to Duration conversion.
	scaled := float64(d) * factor
	if scaled >= math.MaxInt64 {
		logger.Warn("Ignoring oversized timeout factor",
			slog.String("var", TimeoutFactorEnv),
			slog.String("value", raw))
		return d
	}
	return time.Duration(scaled)
}
