package emit

// Event is the tuple of (module path, template, extent, props) that
// flows from a callsite to an Emitter.
type Event struct {
	Module   Path
	Template Template
	Extent   *Extent // nil means "unset"
	Props    Props
}

// NewEvent builds an Event. A nil extent is left unset; the emit entry
// point stamps it with Clock.Now() if the runtime has one.
func NewEvent(module Path, tpl Template, extent *Extent, props Props) Event {
	return Event{Module: module, Template: tpl, Extent: extent, Props: props}
}

// Msg renders the event's template against its props.
func (e Event) Msg() string { return e.Template.RenderString(e.Props) }

// Get is a convenience accessor over the event's props.
func (e Event) Get(key string) (Value, bool) { return Get(e.Props, key) }

// Reserved property keys shared across the core, per the wire contract
// external collaborators (exporters) rely on.
const (
	KeyMdl         = "mdl"
	KeyTpl         = "tpl"
	KeyMsg         = "msg"
	KeyLvl         = "lvl"
	KeyErr         = "err"
	KeyTraceId     = "trace_id"
	KeySpanId      = "span_id"
	KeySpanParent  = "span_parent"
	KeySpanName    = "span_name"
	KeyEvtKind     = "evt_kind"
	KeyMetricName  = "metric_name"
	KeyMetricAgg   = "metric_agg"
	KeyMetricValue = "metric_value"
)

// EvtKind values.
const (
	EvtKindSpan   = "span"
	EvtKindMetric = "metric"
)

// MetricAgg values.
const (
	MetricAggCount = "count"
	MetricAggSum   = "sum"
	MetricAggMin   = "min"
	MetricAggMax   = "max"
	MetricAggLast  = "last"
)

// Level is the severity of a log or span completion.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// FromValue lets Cast[Level] parse a Level back out of a captured
// string or integer Value.
func (l *Level) FromValue(v Value) bool {
	switch v.Kind() {
	case KindString:
		switch v.String() {
		case "debug":
			*l = LevelDebug
		case "info":
			*l = LevelInfo
		case "warn":
			*l = LevelWarn
		case "error":
			*l = LevelError
		default:
			return false
		}
		return true
	case KindInt64:
		*l = Level(v.i64)
		return true
	default:
		return false
	}
}
