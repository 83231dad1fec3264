package span

import (
	"github.com/emit-rs/emit-go/ctxt"
	"github.com/emit-rs/emit-go/emit"
)

// keySampled is an ambient property (not part of the reserved wire
// schema) recording whether the current trace was sampled, so that
// children of an unsampled root inherit disablement without needing to
// re-consult the Sampler.
const keySampled = "_span_sampled"

// Tracer binds a Runtime and a Sampler, and opens span guards.
type Tracer struct {
	Runtime emit.Runtime
	Sampler Sampler
}

// Completion is fired once, by CompleteWith or by Guard's default
// on-drop behavior (callers must `defer guard.End()`), to emit the
// final span event.
type Completion func(base emit.Event) emit.Event

// Guard is the RAII-style span begin/end protocol, Go-adapted: since Go
// has no destructors, callers are expected to `defer guard.End()`
// immediately after StartSpan so the completion event still fires if
// the function returns early or panics.
type Guard struct {
	tracer    Tracer
	module    emit.Path
	tpl       emit.Template
	ctxt      Ctxt
	timer     emit.Timer
	frame     *ctxt.Frame
	enabled   bool
	completed bool
}

// StartSpan opens a span: it reads the current span ctxt from the
// ambient stack, mints a child (trace_id, span_id, span_parent),
// starts a timer, pushes a frame carrying the new ids (and the sampled
// flag) onto the ctxt, and returns a Guard armed with the default
// completion. If the filter would reject the span event, or the
// current trace is unsampled, the guard is disabled: its frame still
// pushes so downstream events remain linkable, but End emits nothing.
// props are only consulted for the filter decision; the span event
// emitted on completion does not carry them.
func (t Tracer) StartSpan(module emit.Path, tpl emit.Template, props emit.Props) *Guard {
	current, sampled := t.currentCtxt()
	child := current.NewChild(rngAdapter{t.Runtime.Rng})

	if current.IsRoot() && !current.HasTraceId {
		// No ambient trace at all: this is a fresh root, consult the
		// sampler now so descendants inherit the decision.
		sampled = true
		if t.Sampler != nil {
			sampled = t.Sampler.Sample(child.TraceId)
		}
	}

	timer := emit.StartTimer(t.Runtime.Clock)

	frameProps := spanCtxtProps(child, sampled)
	frame := t.Runtime.Ctxt.OpenPush(emit.ToCtxtProps(frameProps))
	t.Runtime.Ctxt.Enter(frame)

	enabled := sampled
	if enabled && t.Runtime.Filter != nil {
		probe := buildEvent(module, tpl, child, props, nil)
		if !t.Runtime.Filter.Matches(probe) {
			enabled = false
		}
	}

	return &Guard{
		tracer:  t,
		module:  module,
		tpl:     tpl,
		ctxt:    child,
		timer:   timer,
		frame:   frame,
		enabled: enabled,
	}
}

// Complete fires the default completion: the event is emitted with
// level left unset.
func (g *Guard) Complete() { g.CompleteWith(nil) }

// CompleteWith fires completion, if one hasn't already fired, passing
// the base span event to f so it can add properties, set a level, or
// attach an error before the event is emitted. It then unconditionally
// exits the ctxt frame this guard pushed.
func (g *Guard) CompleteWith(f Completion) {
	if g.completed {
		return
	}
	g.completed = true
	defer g.tracer.Runtime.Ctxt.Exit(g.frame)

	if !g.enabled {
		return
	}

	extent, _ := g.timer.Extent()
	evt := buildEvent(g.module, g.tpl, g.ctxt, emit.Empty, &extent)
	if f != nil {
		evt = f(evt)
	}
	if g.tracer.Runtime.Emitter != nil {
		g.tracer.Runtime.Emitter.Emit(evt)
	}
}

// End is the Go-native stand-in for Drop: idempotent, safe to call
// after an explicit Complete/CompleteWith, and expected to be deferred
// by every caller of StartSpan. A guard abandoned without a deferred
// End will not fire — Go gives no finalizer guarantee precise enough
// to emulate Rust's Drop here (see DESIGN.md).
func (g *Guard) End() { g.CompleteWith(nil) }

// Ctxt returns the span's (trace_id, span_parent, span_id).
func (g *Guard) Ctxt() Ctxt { return g.ctxt }

// Enabled reports whether this guard's completion will actually reach
// the emitter — false for an unsampled trace or one the Filter
// rejected. Exposed for collaborators (e.g. otbridge) that need to
// reflect the sampled flag back out through a foreign API.
func (g *Guard) Enabled() bool { return g.enabled }

func (t Tracer) currentCtxt() (Ctxt, bool) {
	var (
		c       Ctxt
		sampled = true
	)
	t.Runtime.Ctxt.WithCurrent(func(p ctxt.Props) {
		p.ForEach(func(k string, raw any) bool {
			// Frames pushed via emit.ToCtxtProps hold emit.Values, with
			// ids captured as hex strings, so read them back with Cast.
			v := emit.Capture(raw)
			switch k {
			case emit.KeyTraceId:
				if id, ok := emit.Cast[TraceId](v); ok {
					c.TraceId, c.HasTraceId = id, true
				}
			case emit.KeySpanId:
				if id, ok := emit.Cast[SpanId](v); ok {
					c.SpanId, c.HasSpanId = id, true
				}
			case keySampled:
				if b, ok := emit.Cast[bool](v); ok {
					sampled = b
				}
			}
			return true
		})
	})
	return c, sampled
}

func spanCtxtProps(c Ctxt, sampled bool) emit.Props {
	m := emit.MapProps{keySampled: emit.Capture(sampled)}
	if c.HasTraceId {
		m[emit.KeyTraceId] = emit.Capture(c.TraceId)
	}
	if c.HasSpanId {
		m[emit.KeySpanId] = emit.Capture(c.SpanId)
	}
	if c.HasParent {
		m[emit.KeySpanParent] = emit.Capture(c.SpanParent)
	}
	return m
}

func buildEvent(module emit.Path, tpl emit.Template, c Ctxt, props emit.Props, extent *emit.Extent) emit.Event {
	// Reserved keys win over caller-supplied properties, per the core's
	// "applications may read but should not overwrite" contract.
	merged := emit.And(spanBaseProps(module, tpl, c), props)
	return emit.NewEvent(module, tpl, extent, merged)
}

func spanBaseProps(module emit.Path, tpl emit.Template, c Ctxt) emit.Props {
	m := emit.MapProps{
		emit.KeyEvtKind:  emit.Capture(emit.EvtKindSpan),
		emit.KeySpanName: emit.Capture(tpl.RenderString(emit.Empty)),
	}
	if c.HasTraceId {
		m[emit.KeyTraceId] = emit.Capture(c.TraceId)
	}
	if c.HasSpanId {
		m[emit.KeySpanId] = emit.Capture(c.SpanId)
	}
	if c.HasParent {
		m[emit.KeySpanParent] = emit.Capture(c.SpanParent)
	}
	return m
}

type rngAdapter struct{ inner emit.Rng }

func (r rngAdapter) Fill(b []byte) bool {
	if r.inner == nil {
		return false
	}
	return r.inner.Fill(b)
}

// FromValue lets emit.Cast[TraceId]/[SpanId] parse these types back
// out of a captured Value, matching the `cast<T>` contract in §4.1.
// TraceId/SpanId implement fmt.Stringer, so Capture already narrows
// them to a KindString Value holding their hex form; parsing that
// string back is the only path needed here.
func (id *TraceId) FromValue(v emit.Value) bool {
	parsed, ok := ParseTraceId(v.String())
	if !ok {
		return false
	}
	*id = parsed
	return true
}

func (id *SpanId) FromValue(v emit.Value) bool {
	parsed, ok := ParseSpanId(v.String())
	if !ok {
		return false
	}
	*id = parsed
	return true
}
