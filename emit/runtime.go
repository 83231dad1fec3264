package emit

import (
	"sync"
	"time"

	"github.com/emit-rs/emit-go/ctxt"
)

// ctxtPropsAdapter views a ctxt.Props (which carries `any` payloads,
// since the ctxt package has no dependency on emit.Value) as an
// emit.Props, capturing each payload on the fly.
type ctxtPropsAdapter struct{ inner ctxt.Props }

func (a ctxtPropsAdapter) ForEach(f func(string, Value) bool) {
	a.inner.ForEach(func(k string, v any) bool {
		return f(k, Capture(v))
	})
}

// ToCtxtProps views an emit.Props as a ctxt.Props, for pushing
// properties (e.g. a span's trace/span ids) onto the ambient stack.
func ToCtxtProps(p Props) ctxt.Props { return propsAsCtxt{p} }

type propsAsCtxt struct{ inner Props }

func (a propsAsCtxt) ForEach(f func(string, any) bool) {
	a.inner.ForEach(func(k string, v Value) bool {
		return f(k, v)
	})
}

// Runtime is the composed (Emitter, Filter, Ctxt, Clock, Rng) the rest
// of the core is parameterized by.
type Runtime struct {
	Emitter Emitter
	Filter  Filter
	Ctxt    ctxt.Ctxt
	Clock   Clock
	Rng     Rng
}

// Emit constructs an Event from module/template/props, stamps it with
// Clock.Now() if extent is nil and a reading is available, merges the
// current Ctxt frame's properties in (ambient loses to callsite on
// duplicate keys, matching And's left-wins contract), and — if the
// Filter matches — hands the event to the Emitter.
func (rt Runtime) Emit(module Path, tpl Template, extent *Extent, props Props) {
	if extent == nil {
		if rt.Clock != nil {
			if now, ok := rt.Clock.Now(); ok {
				p := Point(now)
				extent = &p
			}
		}
	}

	merged := props
	if rt.Ctxt != nil {
		rt.Ctxt.WithCurrent(func(ambient ctxt.Props) {
			merged = And(props, ctxtPropsAdapter{ambient})
		})
	}

	evt := NewEvent(module, tpl, extent, merged)

	if rt.Filter != nil && !rt.Filter.Matches(evt) {
		return
	}
	if rt.Emitter != nil {
		rt.Emitter.Emit(evt)
	}
}

// BlockingFlush drains the runtime's emitter.
func (rt Runtime) BlockingFlush(timeout time.Duration) bool {
	if rt.Emitter == nil {
		return true
	}
	return rt.Emitter.BlockingFlush(timeout)
}

var (
	sharedMu   sync.Mutex
	sharedRt   Runtime
	sharedInit bool

	internalMu   sync.Mutex
	internalRt   Runtime
	internalInit bool
)

// UseAsDefault installs rt as the process-global default runtime. It
// may be initialized exactly once; subsequent calls return false
// without changing the existing runtime or panicking.
func UseAsDefault(rt Runtime) (ok bool) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedInit {
		return false
	}
	sharedRt, sharedInit = rt, true
	return true
}

// Default returns the process-global default runtime, or the zero
// Runtime (which discards events) if none was installed.
func Default() Runtime {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return sharedRt
}

// UseAsInternal installs rt as the runtime used to report failures of
// the diagnostics system itself, kept distinct from the default
// runtime so its own failures don't feed back into themselves. Also
// single-init.
func UseAsInternal(rt Runtime) (ok bool) {
	internalMu.Lock()
	defer internalMu.Unlock()
	if internalInit {
		return false
	}
	internalRt, internalInit = rt, true
	return true
}

// Internal returns the internal diagnostics runtime.
func Internal() Runtime {
	internalMu.Lock()
	defer internalMu.Unlock()
	return internalRt
}
