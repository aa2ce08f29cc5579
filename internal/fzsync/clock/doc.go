// Package clock provides nanosecond timestamps on a monotonic timebase.
//
// The engine works with differences between timestamps taken microseconds
// apart on two goroutines, so the clock must be steady at nanosecond scale.
// On Linux the CLOCK_MONOTONIC_RAW source is used, which is not subject to
// NTP rate correction; clock slewing between two reads would otherwise show
// up in the statistics as phantom skew. Other platforms fall back to Go's
// own monotonic clock.
//
// Timestamps have an arbitrary origin. Only differences between them carry
// meaning.
package clock
