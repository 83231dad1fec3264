package span

import (
	"errors"
	"strconv"
	"strings"

	"github.com/emit-rs/emit-go/ctxt"
	"github.com/emit-rs/emit-go/emit"
)

// Traceparent is the W3C traceparent header value: version, trace id,
// span id, and a flags bitfield whose low bit is the sampled flag.
type Traceparent struct {
	TraceId TraceId
	SpanId  SpanId
	Flags   byte
}

// FlagSampled is the low bit of Flags.
const FlagSampled byte = 0x01

// Sampled reports whether the sampled flag is set.
func (tp Traceparent) Sampled() bool { return tp.Flags&FlagSampled != 0 }

// ErrInvalidTraceparent is returned by ParseTraceparent for any input
// that doesn't match the wire format exactly.
var ErrInvalidTraceparent = errors.New("span: invalid traceparent")

// ParseTraceparent parses "00-<32 hex>-<16 hex>-<2 hex>", rejecting any
// field with the wrong length or character class, a non-"00" version,
// or an all-zero trace or span id.
func ParseTraceparent(s string) (Traceparent, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return Traceparent{}, ErrInvalidTraceparent
	}
	version, traceHex, spanHex, flagsHex := parts[0], parts[1], parts[2], parts[3]

	if version != "00" {
		return Traceparent{}, ErrInvalidTraceparent
	}
	if !isLowerHex(traceHex, 32) || !isLowerHex(spanHex, 16) || !isLowerHex(flagsHex, 2) {
		return Traceparent{}, ErrInvalidTraceparent
	}

	traceID, ok := ParseTraceId(traceHex)
	if !ok || traceID.IsZero() {
		return Traceparent{}, ErrInvalidTraceparent
	}
	spanID, ok := ParseSpanId(spanHex)
	if !ok || spanID.IsZero() {
		return Traceparent{}, ErrInvalidTraceparent
	}
	flags, err := strconv.ParseUint(flagsHex, 16, 8)
	if err != nil {
		return Traceparent{}, ErrInvalidTraceparent
	}

	return Traceparent{TraceId: traceID, SpanId: spanID, Flags: byte(flags)}, nil
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// String formats tp back to the wire format: always lowercase, always
// fixed width with leading zeros.
func (tp Traceparent) String() string {
	var sb strings.Builder
	sb.WriteString("00-")
	sb.WriteString(tp.TraceId.Hex())
	sb.WriteByte('-')
	sb.WriteString(tp.SpanId.Hex())
	sb.WriteByte('-')
	flags := strconv.FormatUint(uint64(tp.Flags), 16)
	if len(flags) < 2 {
		flags = strings.Repeat("0", 2-len(flags)) + flags
	}
	sb.WriteString(flags)
	return sb.String()
}

// ToCtxt views tp as a span Ctxt so it can seed a root span.
func (tp Traceparent) ToCtxt() Ctxt {
	return Ctxt{TraceId: tp.TraceId, HasTraceId: true, SpanId: tp.SpanId, HasSpanId: true}
}

// CurrentTraceparent reads the ambient trace/span id and sampled flag
// off c and reassembles them into a Traceparent, for code that needs
// to put the current trace on the wire (an outgoing request header, a
// message envelope). ok is false if no trace is active.
func CurrentTraceparent(c ctxt.Ctxt) (tp Traceparent, ok bool) {
	var (
		traceID TraceId
		spanID  SpanId
		hasTID  bool
		hasSID  bool
		sampled = true
	)
	c.WithCurrent(func(p ctxt.Props) {
		p.ForEach(func(k string, raw any) bool {
			v := emit.Capture(raw)
			switch k {
			case emit.KeyTraceId:
				if id, ok := emit.Cast[TraceId](v); ok {
					traceID, hasTID = id, true
				}
			case emit.KeySpanId:
				if id, ok := emit.Cast[SpanId](v); ok {
					spanID, hasSID = id, true
				}
			case keySampled:
				if b, ok := emit.Cast[bool](v); ok {
					sampled = b
				}
			}
			return true
		})
	})
	if !hasTID || !hasSID {
		return Traceparent{}, false
	}
	var flags byte
	if sampled {
		flags = FlagSampled
	}
	return Traceparent{TraceId: traceID, SpanId: spanID, Flags: flags}, true
}

// PushTraceparent installs tp as the ambient trace/span context, the
// way a server handler seeds its ctxt from an inbound traceparent
// header before doing any work. The caller owns the returned frame's
// lifecycle: Enter it, defer Exit, same as any other ctxt.Frame.
func PushTraceparent(c ctxt.Ctxt, tp Traceparent) *ctxt.Frame {
	props := emit.MapProps{
		emit.KeyTraceId: emit.Capture(tp.TraceId),
		emit.KeySpanId:  emit.Capture(tp.SpanId),
		keySampled:      emit.Capture(tp.Sampled()),
	}
	return c.OpenPush(emit.ToCtxtProps(props))
}
