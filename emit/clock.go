package emit

import (
	"crypto/rand"
	"time"
)

// Clock produces the current time. Now may return (0, false) when time
// is unavailable; callers must tolerate missing timestamps.
type Clock interface {
	Now() (Timestamp, bool)
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() (Timestamp, bool) { return TimestampFromTime(time.Now()), true }

// NoClock never produces a reading; useful for testing the
// "unavailable" code paths.
type NoClock struct{}

func (NoClock) Now() (Timestamp, bool) { return 0, false }

// Rng produces random bytes. Fill may return false when entropy is
// unavailable, in which case callers fall back to "unidentified" ids.
type Rng interface {
	Fill(b []byte) bool
}

// SystemRng is the default Rng, backed by crypto/rand.
type SystemRng struct{}

func (SystemRng) Fill(b []byte) bool {
	_, err := rand.Read(b)
	return err == nil
}

// NoRng never produces entropy.
type NoRng struct{}

func (NoRng) Fill(b []byte) bool { return false }

// Timer ties a start reading from a Clock to an Extent covering the
// time since it was started. Clocks aren't guaranteed monotonic, so a
// Timer's elapsed time can be undefined if the clock goes backwards.
type Timer struct {
	start   Timestamp
	hasStart bool
	clock   Clock
}

// StartTimer snapshots clock.Now() as the timer's initial reading.
func StartTimer(clock Clock) Timer {
	ts, ok := clock.Now()
	return Timer{start: ts, hasStart: ok, clock: clock}
}

// StartTimestamp returns the reading taken when the timer was started.
func (t Timer) StartTimestamp() (Timestamp, bool) { return t.start, t.hasStart }

// Extent returns [start, clock.Now()) as a range, only when both
// readings are present.
func (t Timer) Extent() (Extent, bool) {
	end, ok := t.clock.Now()
	if !t.hasStart || !ok {
		return Extent{}, false
	}
	return Range(t.start, end), true
}

// Elapsed is Extent().Len(): it returns false both when a reading is
// missing and when the clock went backwards between readings, even
// though Extent() itself still returns that (invalid) range.
func (t Timer) Elapsed() (time.Duration, bool) {
	ext, ok := t.Extent()
	if !ok {
		return 0, false
	}
	return ext.Len()
}
