package fzsync

import "github.com/kolkov/fuzzysync/internal/fzsync/clock"

// Version information for the fuzzy synchronization engine.
const (
	// Version is the current version of the engine.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the engine.
type Info struct {
	// Version is the engine version string.
	Version string

	// Algorithm names the synchronization strategy in use.
	Algorithm string

	// RawClock reports whether timestamps come from a raw monotonic
	// clock source unaffected by NTP slewing.
	RawClock bool
}

// GetInfo returns information about the engine build.
//
// Example:
//
//	info := fzsync.GetInfo()
//	fmt.Printf("fzsync %s (%s)\n", info.Version, info.Algorithm)
func GetInfo() Info {
	return Info{
		Version:   Version,
		Algorithm: "fuzzy sync (EMA-calibrated delay sweep)",
		RawClock:  clock.Raw,
	}
}
