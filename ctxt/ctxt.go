// Package ctxt implements the ambient property stack: a per-goroutine
// hierarchical scope of properties whose frames are complete snapshots
// that can be captured on one goroutine and resumed on another.
package ctxt

import (
	"sync"
)

// Props is the minimal read interface ctxt needs from emit.Props,
// duplicated here (rather than imported) so this package has no
// dependency on the emit package's Value representation beyond the
// narrow "any" escape hatch it already needs for trace/span ids.
type Props interface {
	ForEach(func(key string, v any) bool)
}

// MapProps adapts a plain map to Props.
type MapProps map[string]any

func (m MapProps) ForEach(f func(string, any) bool) {
	for k, v := range m {
		if !f(k, v) {
			return
		}
	}
}

// Frame is a complete snapshot of the visible properties at the moment
// it was opened. Because it's a snapshot, not a delta, it's safe to
// move across goroutines without losing parent context.
type Frame struct {
	props      *sharedProps // nil means "no properties"
	generation uint64
}

// sharedProps is never mutated once built: OpenPush copies the parent's
// map into a new one, and Enter/Exit only swap frames, so reads never
// need to lock against writers on a different goroutine.
type sharedProps struct {
	m map[string]entry
}

type entry struct {
	value      any
	generation uint64
}

func (f Frame) ForEach(fn func(string, any) bool) {
	if f.props == nil {
		return
	}
	for k, e := range f.props.m {
		if !fn(k, e.value) {
			return
		}
	}
}

// Len reports the number of properties visible in the frame, mainly
// for tests.
func (f Frame) Len() int {
	if f.props == nil {
		return 0
	}
	return len(f.props.m)
}

// Ctxt is the ambient property stack. The zero value is not usable;
// construct with New or Shared.
type Ctxt interface {
	// WithCurrent calls f with a read-only view over the current set.
	WithCurrent(f func(Props))
	// OpenRoot produces a frame that, when entered, replaces the
	// visible property set with props.
	OpenRoot(props Props) *Frame
	// OpenPush produces a frame that, when entered, makes the visible
	// set the union of the current set and props, with props winning
	// on duplicate keys.
	OpenPush(props Props) *Frame
	// Enter swaps frame into the active slot.
	Enter(frame *Frame)
	// Exit swaps frame back out of the active slot. Every Enter must
	// eventually be balanced by an Exit on the same frame, but
	// out-of-order Exit across nested frames must not panic.
	Exit(frame *Frame)
	// Close releases any resources owned by frame. It is a no-op for
	// the goroutine-local implementation.
	Close(frame *Frame)
}

// threadLocal stores ambient frames per (ctxt id, goroutine id).
type threadLocal struct {
	id int64
}

var (
	nextIDMu sync.Mutex
	nextID   int64 = 1 // 0 is reserved for the shared variant
)

// New returns a Ctxt with storage isolated from every other Ctxt
// instance (including the shared one), keyed by a unique id so
// multiple independently configured runtimes don't clobber state.
func New() Ctxt {
	nextIDMu.Lock()
	id := nextID
	nextID++
	nextIDMu.Unlock()
	return threadLocal{id: id}
}

// sharedCtxt is the process-global default Ctxt; id 0 is reserved for
// it so every call to Shared() observes the same storage.
var sharedCtxt = threadLocal{id: 0}

// Shared returns the process-global default Ctxt.
func Shared() Ctxt { return sharedCtxt }

var (
	activeMu sync.Mutex
	active   = map[int64]map[int64]*Frame{} // ctxt id -> goroutine id -> frame
)

func currentLocked(ctxtID, gID int64) *Frame {
	byGoroutine, ok := active[ctxtID]
	if !ok {
		byGoroutine = map[int64]*Frame{}
		active[ctxtID] = byGoroutine
	}
	f, ok := byGoroutine[gID]
	if !ok {
		f = &Frame{}
		byGoroutine[gID] = f
	}
	return f
}

func (t threadLocal) WithCurrent(f func(Props)) {
	gID := goroutineID()
	activeMu.Lock()
	cur := *currentLocked(t.id, gID)
	activeMu.Unlock()
	f(cur)
}

func (t threadLocal) OpenRoot(props Props) *Frame {
	m := map[string]entry{}
	const generation = 0
	if props != nil {
		props.ForEach(func(k string, v any) bool {
			if _, ok := m[k]; !ok {
				m[k] = entry{value: v, generation: generation}
			}
			return true
		})
	}
	return &Frame{props: &sharedProps{m: m}, generation: generation}
}

func (t threadLocal) OpenPush(props Props) *Frame {
	gID := goroutineID()
	activeMu.Lock()
	cur := *currentLocked(t.id, gID)
	activeMu.Unlock()

	generation := cur.generation + 1

	src := map[string]entry{}
	if cur.props != nil {
		for k, e := range cur.props.m {
			src[k] = e
		}
	}

	if props != nil {
		props.ForEach(func(k string, v any) bool {
			existing, ok := src[k]
			if !ok || existing.generation != generation {
				src[k] = entry{value: v, generation: generation}
			}
			return true
		})
	}

	return &Frame{props: &sharedProps{m: src}, generation: generation}
}

func (t threadLocal) Enter(frame *Frame) { t.swap(frame) }
func (t threadLocal) Exit(frame *Frame)  { t.swap(frame) }
func (t threadLocal) Close(frame *Frame) {}

func (t threadLocal) swap(incoming *Frame) {
	gID := goroutineID()
	activeMu.Lock()
	defer activeMu.Unlock()
	cur := currentLocked(t.id, gID)
	*cur, *incoming = *incoming, *cur
}
