package otbridge

import (
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	otlog "github.com/opentracing/opentracing-go/log"

	"github.com/emit-rs/emit-go/emit"
	"github.com/emit-rs/emit-go/span"
)

// Span adapts a *span.Guard to opentracing.Span. Tag/baggage writes
// are buffered under mu and only merged into the emitted event at
// Finish, since span.Guard's completion callback is the one place the
// core lets a caller add properties to a span event.
type Span struct {
	tracer *Tracer
	guard  *span.Guard

	mu      sync.Mutex
	opName  string
	tags    map[string]any
	baggage map[string]string
}

var _ opentracing.Span = (*Span)(nil)

func (t *Tracer) wrap(guard *span.Guard, opName string, tags map[string]any, parentBaggage map[string]string) *Span {
	tc := make(map[string]any, len(tags))
	for k, v := range tags {
		tc[k] = v
	}
	bg := make(map[string]string, len(parentBaggage))
	for k, v := range parentBaggage {
		bg[k] = v
	}
	return &Span{tracer: t, guard: guard, opName: opName, tags: tc, baggage: bg}
}

// Finish implements opentracing.Span.
func (s *Span) Finish() { s.FinishWithOptions(opentracing.FinishOptions{}) }

// FinishWithOptions implements opentracing.Span. Any bulk log data
// passed in opts is emitted as its own log event before completion,
// same as a LogFields/LogKV call would be.
func (s *Span) FinishWithOptions(opts opentracing.FinishOptions) {
	for _, rec := range opts.LogRecords {
		s.LogFields(rec.Fields...)
	}
	for _, data := range opts.BulkLogData {
		s.Log(data)
	}

	s.mu.Lock()
	tags := make(emit.MapProps, len(s.tags))
	for k, v := range s.tags {
		tags[k] = emit.Capture(v)
	}
	s.mu.Unlock()

	s.guard.CompleteWith(func(evt emit.Event) emit.Event {
		// Reserved span properties win on collision, same contract
		// buildEvent documents for ordinary StartSpan callers.
		evt.Props = emit.And(evt.Props, tags)
		return evt
	})
}

// Context implements opentracing.Span.
func (s *Span) Context() opentracing.SpanContext {
	c := s.guard.Ctxt()
	tp := span.Traceparent{TraceId: c.TraceId, SpanId: c.SpanId}
	if s.guard.Enabled() {
		tp.Flags = span.FlagSampled
	}

	s.mu.Lock()
	bg := make(map[string]string, len(s.baggage))
	for k, v := range s.baggage {
		bg[k] = v
	}
	s.mu.Unlock()

	return SpanContext{traceparent: tp, baggage: bg}
}

// SetOperationName implements opentracing.Span. The reserved span_name
// property is already fixed by the template StartSpan was called
// with, so a rename after the fact is recorded as a tag rather than
// silently dropped or retroactively rewriting the emitted event.
func (s *Span) SetOperationName(operationName string) opentracing.Span {
	s.mu.Lock()
	s.opName = operationName
	s.tags["operation.name"] = operationName
	s.mu.Unlock()
	return s
}

// SetTag implements opentracing.Span.
func (s *Span) SetTag(key string, value interface{}) opentracing.Span {
	s.mu.Lock()
	s.tags[key] = value
	s.mu.Unlock()
	return s
}

// LogFields implements opentracing.Span.
func (s *Span) LogFields(fields ...otlog.Field) {
	props := emit.MapProps{}
	for _, f := range fields {
		props[f.Key()] = emit.Capture(f.Value())
	}
	s.emitLog(props)
}

// LogKV implements opentracing.Span.
func (s *Span) LogKV(alternatingKeyValues ...interface{}) {
	fields, err := otlog.InterleavedKVToFields(alternatingKeyValues...)
	if err != nil {
		return
	}
	s.LogFields(fields...)
}

// LogEvent implements the deprecated opentracing.Span log surface.
func (s *Span) LogEvent(event string) {
	s.emitLog(emit.MapProps{"event": emit.Capture(event)})
}

// LogEventWithPayload implements the deprecated opentracing.Span log
// surface.
func (s *Span) LogEventWithPayload(event string, payload interface{}) {
	s.emitLog(emit.MapProps{"event": emit.Capture(event), "payload": emit.Capture(payload)})
}

// Log implements the deprecated opentracing.Span log surface.
func (s *Span) Log(data opentracing.LogData) {
	props := emit.MapProps{}
	if data.Event != "" {
		props["event"] = emit.Capture(data.Event)
	}
	if data.Payload != nil {
		props["payload"] = emit.Capture(data.Payload)
	}
	s.emitLog(props)
}

// SetBaggageItem implements opentracing.Span.
func (s *Span) SetBaggageItem(restrictedKey, value string) opentracing.Span {
	s.mu.Lock()
	s.baggage[restrictedKey] = value
	s.mu.Unlock()
	return s
}

// BaggageItem implements opentracing.Span.
func (s *Span) BaggageItem(restrictedKey string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baggage[restrictedKey]
}

// Tracer implements opentracing.Span.
func (s *Span) Tracer() opentracing.Tracer { return s.tracer }

// emitLog emits a standalone log event through the wrapped tracer's
// Runtime; since the span's frame is still active on this goroutine,
// Runtime.Emit's ambient merge stamps it with the span's trace/span
// ids the same way it would for any other in-span log call.
func (s *Span) emitLog(props emit.Props) {
	s.mu.Lock()
	opName := s.opName
	s.mu.Unlock()
	s.tracer.Inner.Runtime.Emit(s.tracer.Module, emit.Literal(opName+".log"), nil, props)
}

// SpanContext adapts a span.Traceparent (plus an in-memory baggage
// set) to opentracing.SpanContext.
type SpanContext struct {
	traceparent span.Traceparent
	baggage     map[string]string
}

var _ opentracing.SpanContext = SpanContext{}

// ForeachBaggageItem implements opentracing.SpanContext.
func (c SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {
	for k, v := range c.baggage {
		if !handler(k, v) {
			return
		}
	}
}
