//go:build !linux

package clock

import "time"

// Raw reports that timestamps come from Go's slewed monotonic clock, not a
// raw hardware timebase.
const Raw = false

// base anchors the fallback timebase at process start.
var base = time.Now()

// Now returns the current time in nanoseconds since an arbitrary origin,
// carried by Go's monotonic clock reading.
func Now() int64 {
	return int64(time.Since(base))
}
