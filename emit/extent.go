package emit

import (
	"time"
)

// Timestamp is a Unix-epoch instant with nanosecond precision.
type Timestamp int64

// MinTimestamp and MaxTimestamp are sentinel bounds.
const (
	MinTimestamp Timestamp = 0
	MaxTimestamp Timestamp = 1<<63 - 1
)

// TimestampFromTime converts a time.Time to a Timestamp.
func TimestampFromTime(t time.Time) Timestamp { return Timestamp(t.UnixNano()) }

// Time converts ts back to a time.Time.
func (ts Timestamp) Time() time.Time { return time.Unix(0, int64(ts)).UTC() }

func (ts Timestamp) String() string { return ts.Time().Format(time.RFC3339Nano) }

// Extent is either a point timestamp or a half-open range [start, end)
// of timestamps.
type Extent struct {
	start, end Timestamp
	isRange    bool
}

// Point returns an extent for a single instant.
func Point(ts Timestamp) Extent {
	return Extent{start: ts, end: ts, isRange: false}
}

// Range returns an extent for [start, end). The end should be after
// the start, but an empty or backwards range is still considered a
// range, not a point.
func Range(start, end Timestamp) Extent {
	return Extent{start: start, end: end, isRange: true}
}

// AsPoint returns the extent's end bound: exactly the value it was
// created from for point extents, the range's end for range extents.
func (e Extent) AsPoint() Timestamp { return e.end }

// AsRange returns (start, end, true) if e is a range (even an empty
// one), or (0, 0, false) for point extents.
func (e Extent) AsRange() (Timestamp, Timestamp, bool) {
	if !e.isRange {
		return 0, 0, false
	}
	return e.start, e.end, true
}

// IsPoint reports whether e is a single instant.
func (e Extent) IsPoint() bool { return !e.isRange }

// IsRange reports whether e is a range.
func (e Extent) IsRange() bool { return e.isRange }

// Len returns the range's duration and true, or (0, false) for point
// extents or backwards ranges (end before start) — preserving the
// point-vs-range discrimination even when the length is undefined.
func (e Extent) Len() (time.Duration, bool) {
	if !e.isRange {
		return 0, false
	}
	if e.end < e.start {
		return 0, false
	}
	return time.Duration(e.end-e.start) * time.Nanosecond, true
}

func (e Extent) String() string {
	if e.isRange {
		return e.start.String() + ".." + e.end.String()
	}
	return e.end.String()
}

// Reserved property keys for Extent's Props view.
const (
	KeyTs      = "ts"
	KeyTsStart = "ts_start"
)

// ForEach implements Props: a range extent yields ts_start and ts; a
// point extent yields only ts.
func (e Extent) ForEach(f func(string, Value) bool) {
	if e.isRange {
		if !f(KeyTsStart, Capture(int64(e.start))) {
			return
		}
		f(KeyTs, Capture(int64(e.end)))
		return
	}
	f(KeyTs, Capture(int64(e.end)))
}
