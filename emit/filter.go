package emit

import "time"

// Filter is a pure predicate gating whether an Emitter sees an Event.
type Filter interface {
	Matches(Event) bool
}

// FilterFunc adapts a function to a Filter.
type FilterFunc func(Event) bool

func (f FilterFunc) Matches(e Event) bool { return f(e) }

// AlwaysMatch is the permissive Filter.
var AlwaysMatch Filter = FilterFunc(func(Event) bool { return true })

// AndFilter short-circuits: all must match.
func AndFilter(filters ...Filter) Filter {
	return FilterFunc(func(e Event) bool {
		for _, f := range filters {
			if !f.Matches(e) {
				return false
			}
		}
		return true
	})
}

// OrFilter short-circuits: any may match.
func OrFilter(filters ...Filter) Filter {
	return FilterFunc(func(e Event) bool {
		for _, f := range filters {
			if f.Matches(e) {
				return true
			}
		}
		return false
	})
}

// Emitter is the terminal sink for events. Emit must not block for
// longer than strictly necessary; long-running work belongs behind a
// BatchChannel worker (see package batch).
type Emitter interface {
	Emit(Event)
	// BlockingFlush drains any internal buffers, returning true if the
	// drain completed within timeout.
	BlockingFlush(timeout time.Duration) bool
}

// EmitterFunc adapts a function plus a flush implementation to an
// Emitter.
type EmitterFunc struct {
	EmitFn  func(Event)
	FlushFn func(time.Duration) bool
}

func (f EmitterFunc) Emit(e Event) { f.EmitFn(e) }
func (f EmitterFunc) BlockingFlush(timeout time.Duration) bool {
	if f.FlushFn == nil {
		return true
	}
	return f.FlushFn(timeout)
}

// FanOut dispatches every event to all of emitters, fanning out. Its
// BlockingFlush only reports true once every emitter's flush does.
func FanOut(emitters ...Emitter) Emitter {
	return fanOut(emitters)
}

type fanOut []Emitter

func (fo fanOut) Emit(e Event) {
	for _, em := range fo {
		em.Emit(e)
	}
}

func (fo fanOut) BlockingFlush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ok := true
	for _, em := range fo {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		if !em.BlockingFlush(remaining) {
			ok = false
		}
	}
	return ok
}

// FilterEmitter wraps emitter so only events matching filter reach it.
func FilterEmitter(filter Filter, emitter Emitter) Emitter {
	return filteredEmitter{filter, emitter}
}

type filteredEmitter struct {
	filter  Filter
	emitter Emitter
}

func (f filteredEmitter) Emit(e Event) {
	if f.filter.Matches(e) {
		f.emitter.Emit(e)
	}
}

func (f filteredEmitter) BlockingFlush(timeout time.Duration) bool {
	return f.emitter.BlockingFlush(timeout)
}

// DiscardEmitter drops every event; useful as a default/test double.
var DiscardEmitter Emitter = EmitterFunc{EmitFn: func(Event) {}}
