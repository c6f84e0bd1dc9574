package concept

import "time"

// NowMicros returns the current time in microseconds since the Unix
// epoch, the unit used for last_accessed and snapshot timestamps.
func NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// NowSeconds returns the current time in whole seconds since the Unix
// epoch, the unit used for a concept's created field.
func NowSeconds() uint64 {
	return uint64(time.Now().Unix())
}
