// Package otbridge adapts a span.Tracer to the OpenTracing API, so
// code instrumented against github.com/opentracing/opentracing-go can
// drive span.Guard without depending on this module directly.
package otbridge

import (
	"strings"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/emit-rs/emit-go/emit"
	"github.com/emit-rs/emit-go/span"
)

// traceparentHeader and baggageHeaderPrefix are the carrier keys used
// by Inject/Extract for the TextMap and HTTPHeaders formats.
const (
	traceparentHeader   = "traceparent"
	baggageHeaderPrefix = "ot-baggage-"
)

// Tracer wraps a span.Tracer so it satisfies opentracing.Tracer. The
// wrapped tracer still works directly against span.Guard in parallel,
// same as the teacher's own opentracer.New wraps a ddtrace.Tracer.
type Tracer struct {
	Inner  span.Tracer
	Module emit.Path
}

var _ opentracing.Tracer = (*Tracer)(nil)

// New returns a Tracer that emits spans through inner.
func New(inner span.Tracer) *Tracer {
	return &Tracer{Inner: inner, Module: emit.Path("otbridge")}
}

// StartSpan implements opentracing.Tracer. Only the first ChildOf/
// FollowsFrom reference pointing at a SpanContext produced by this
// package is honored; span.Ctxt has no notion of multiple parents.
func (t *Tracer) StartSpan(operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	var sso opentracing.StartSpanOptions
	for _, opt := range opts {
		opt.Apply(&sso)
	}

	var parentBaggage map[string]string
	for _, ref := range sso.References {
		if ref.Type != opentracing.ChildOfRef && ref.Type != opentracing.FollowsFromRef {
			continue
		}
		sc, ok := ref.ReferencedContext.(SpanContext)
		if !ok {
			continue
		}
		parentBaggage = sc.baggage

		// The parent frame only needs to be active for the duration of
		// StartSpan: span.Tracer.StartSpan reads the ambient ctxt once,
		// at call time, to mint the child, then pushes its own frame
		// carrying the child's ids forward.
		frame := span.PushTraceparent(t.Inner.Runtime.Ctxt, sc.traceparent)
		t.Inner.Runtime.Ctxt.Enter(frame)
		guard := t.Inner.StartSpan(t.Module, emit.Literal(operationName), nil)
		t.Inner.Runtime.Ctxt.Exit(frame)
		return t.wrap(guard, operationName, sso.Tags, parentBaggage)
	}

	guard := t.Inner.StartSpan(t.Module, emit.Literal(operationName), nil)
	return t.wrap(guard, operationName, sso.Tags, parentBaggage)
}

// Inject implements opentracing.Tracer for the TextMap and
// HTTPHeaders formats, writing the span context as a traceparent
// header plus one ot-baggage-* entry per baggage item.
func (t *Tracer) Inject(sm opentracing.SpanContext, format interface{}, carrier interface{}) error {
	sc, ok := sm.(SpanContext)
	if !ok {
		return opentracing.ErrInvalidSpanContext
	}

	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
		writer, ok := carrier.(opentracing.TextMapWriter)
		if !ok {
			return opentracing.ErrInvalidCarrier
		}
		writer.Set(traceparentHeader, sc.traceparent.String())
		for k, v := range sc.baggage {
			writer.Set(baggageHeaderPrefix+k, v)
		}
		return nil
	default:
		return opentracing.ErrUnsupportedFormat
	}
}

// Extract implements opentracing.Tracer for the TextMap and
// HTTPHeaders formats, the inverse of Inject.
func (t *Tracer) Extract(format interface{}, carrier interface{}) (opentracing.SpanContext, error) {
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
		reader, ok := carrier.(opentracing.TextMapReader)
		if !ok {
			return nil, opentracing.ErrInvalidCarrier
		}

		var (
			raw     string
			baggage map[string]string
		)
		err := reader.ForeachKey(func(key, val string) error {
			switch {
			case strings.EqualFold(key, traceparentHeader):
				raw = val
			case len(key) > len(baggageHeaderPrefix) && strings.EqualFold(key[:len(baggageHeaderPrefix)], baggageHeaderPrefix):
				if baggage == nil {
					baggage = map[string]string{}
				}
				baggage[key[len(baggageHeaderPrefix):]] = val
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if raw == "" {
			return nil, opentracing.ErrSpanContextNotFound
		}

		tp, perr := span.ParseTraceparent(raw)
		if perr != nil {
			return nil, opentracing.ErrSpanContextCorrupted
		}
		return SpanContext{traceparent: tp, baggage: baggage}, nil
	default:
		return nil, opentracing.ErrUnsupportedFormat
	}
}
