package ctxt

import (
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id by parsing the
// leading "goroutine N [...]" line of a captured stack trace. Go has
// no public goroutine-id API; this is the same technique the wider
// ecosystem (race detectors, goroutine-local-storage shims) relies on
// when it needs a stable per-goroutine key, and it's cheap enough for
// ctxt's purposes since it only runs on OpenPush/Enter/Exit/WithCurrent,
// not on the Value/Props hot path.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	// b starts with "goroutine 123 [running]:\n"
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	b = b[len(prefix):]

	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	id, err := strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
