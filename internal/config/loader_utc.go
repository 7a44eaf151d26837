package config

import "time"

// enforceUTC pins the process-local timezone to UTC. All dates in the engine
// (observation dates, analog windows, cache fingerprints) are calendar dates
// in UTC; a drifting time.Local would silently shift day-of-year math.
func enforceUTC() {
	time.Local = time.UTC
}
