// Package otlpconfig resolves OTLP exporter configuration from
// environment variables, per the OpenTelemetry SDK configuration spec:
// https://opentelemetry.io/docs/languages/sdk-configuration/otlp-exporter/
//
// Signal-specific variables override the generic ones, except headers,
// which are merged (signal-specific values win per key).
package otlpconfig

import (
	"strconv"
	"strings"
	"time"

	"github.com/emit-rs/emit-go/internal/baggage"
	"github.com/emit-rs/emit-go/internal/log"
)

// Protocol is the OTLP wire protocol used to reach the collector.
type Protocol int

const (
	ProtocolGrpc Protocol = iota
	ProtocolHTTPProtobuf
	ProtocolHTTPJSON
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTPProtobuf:
		return "http/protobuf"
	case ProtocolHTTPJSON:
		return "http/json"
	default:
		return "grpc"
	}
}

// signal holds the raw values read for one level of
// OTEL_EXPORTER_OTLP_* variables (generic or signal-specific); nil
// fields were not set. resolve layers the two levels.
type signal struct {
	protocol    *Protocol
	endpoint    *string
	headers     map[string][]string
	timeout     *uint64
}

// Config holds the OTLP base configuration plus a per-signal override
// for logs, traces, and metrics.
type Config struct {
	base    signal
	logs    signal
	traces  signal
	metrics signal
}

const (
	envProtocol        = "OTEL_EXPORTER_OTLP_PROTOCOL"
	envTracesProtocol  = "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"
	envMetricsProtocol = "OTEL_EXPORTER_OTLP_METRICS_PROTOCOL"
	envLogsProtocol    = "OTEL_EXPORTER_OTLP_LOGS_PROTOCOL"

	envEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envTracesEndpoint  = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
	envMetricsEndpoint = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
	envLogsEndpoint    = "OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"

	envHeaders        = "OTEL_EXPORTER_OTLP_HEADERS"
	envTracesHeaders  = "OTEL_EXPORTER_OTLP_TRACES_HEADERS"
	envMetricsHeaders = "OTEL_EXPORTER_OTLP_METRICS_HEADERS"
	envLogsHeaders    = "OTEL_EXPORTER_OTLP_LOGS_HEADERS"

	envTimeout        = "OTEL_EXPORTER_OTLP_TIMEOUT"
	envTracesTimeout  = "OTEL_EXPORTER_OTLP_TRACES_TIMEOUT"
	envMetricsTimeout = "OTEL_EXPORTER_OTLP_METRICS_TIMEOUT"
	envLogsTimeout    = "OTEL_EXPORTER_OTLP_LOGS_TIMEOUT"
)

// FromEnv builds a Config by scanning env, a slice of "KEY=VALUE"
// pairs in the form os.Environ() returns.
func FromEnv(env []string) Config {
	var cfg Config
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		apply(&cfg, k, v)
	}
	return cfg
}

func apply(cfg *Config, k, v string) {
	switch {
	case strings.EqualFold(k, envProtocol):
		cfg.base.protocol = readProtocol(v)
	case strings.EqualFold(k, envLogsProtocol):
		cfg.logs.protocol = readProtocol(v)
	case strings.EqualFold(k, envTracesProtocol):
		cfg.traces.protocol = readProtocol(v)
	case strings.EqualFold(k, envMetricsProtocol):
		cfg.metrics.protocol = readProtocol(v)

	case strings.EqualFold(k, envEndpoint):
		cfg.base.endpoint = readEndpoint(v)
	case strings.EqualFold(k, envLogsEndpoint):
		cfg.logs.endpoint = readEndpoint(v)
	case strings.EqualFold(k, envTracesEndpoint):
		cfg.traces.endpoint = readEndpoint(v)
	case strings.EqualFold(k, envMetricsEndpoint):
		cfg.metrics.endpoint = readEndpoint(v)

	case strings.EqualFold(k, envHeaders):
		cfg.base.headers = readHeaders(v)
	case strings.EqualFold(k, envLogsHeaders):
		cfg.logs.headers = readHeaders(v)
	case strings.EqualFold(k, envTracesHeaders):
		cfg.traces.headers = readHeaders(v)
	case strings.EqualFold(k, envMetricsHeaders):
		cfg.metrics.headers = readHeaders(v)

	case strings.EqualFold(k, envTimeout):
		cfg.base.timeout = readTimeout(v)
	case strings.EqualFold(k, envLogsTimeout):
		cfg.logs.timeout = readTimeout(v)
	case strings.EqualFold(k, envTracesTimeout):
		cfg.traces.timeout = readTimeout(v)
	case strings.EqualFold(k, envMetricsTimeout):
		cfg.metrics.timeout = readTimeout(v)
	}
}

func readEndpoint(v string) *string {
	v = strings.TrimSpace(v)
	return &v
}

func readProtocol(v string) *Protocol {
	v = strings.TrimSpace(v)
	var p Protocol
	switch {
	case strings.EqualFold(v, "grpc"):
		p = ProtocolGrpc
	case strings.EqualFold(v, "http/protobuf"):
		p = ProtocolHTTPProtobuf
	case strings.EqualFold(v, "http/json"):
		p = ProtocolHTTPJSON
	default:
		log.Warn("failed to parse protocol: %q is not a valid protocol", v)
		return nil
	}
	return &p
}

func readHeaders(v string) map[string][]string {
	v = strings.TrimSpace(v)
	headers := map[string][]string{}

	pairs, err := baggage.Parse(v)
	if err != nil {
		log.Warn("failed to parse HTTP headers: %v", err)
	}
	for _, pair := range pairs {
		if pair.Value.IsList {
			log.Warn("ignoring list-valued property %s", pair.Key)
			continue
		}
		headers[pair.Key] = append(headers[pair.Key], pair.Value.Single)
	}
	return headers
}

func readTimeout(v string) *uint64 {
	v = strings.TrimSpace(v)
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Warn("failed to parse timeout: %v", err)
		return nil
	}
	return &n
}

// Resolved is the fully-merged configuration for a single signal.
type Resolved struct {
	Protocol Protocol
	Endpoint string
	Headers  map[string][]string
	Timeout  time.Duration
}

// Logs resolves the logs signal's configuration.
func (c Config) Logs(httpSubpath string) Resolved { return c.resolve(c.logs, httpSubpath) }

// Traces resolves the traces signal's configuration.
func (c Config) Traces(httpSubpath string) Resolved { return c.resolve(c.traces, httpSubpath) }

// Metrics resolves the metrics signal's configuration.
func (c Config) Metrics(httpSubpath string) Resolved { return c.resolve(c.metrics, httpSubpath) }

func (c Config) resolve(s signal, httpSubpath string) Resolved {
	protocol := ProtocolGrpc
	if s.protocol != nil {
		protocol = *s.protocol
	} else if c.base.protocol != nil {
		protocol = *c.base.protocol
	}

	var endpoint string
	switch {
	case s.endpoint != nil:
		endpoint = *s.endpoint
	case c.base.endpoint != nil:
		endpoint = *c.base.endpoint
	case protocol == ProtocolGrpc:
		endpoint = "http://localhost:4317"
	default:
		endpoint = pushPath("http://localhost:4318", httpSubpath)
	}

	timeout := uint64(10_000)
	switch {
	case s.timeout != nil:
		timeout = *s.timeout
	case c.base.timeout != nil:
		timeout = *c.base.timeout
	}

	headers := map[string][]string{}
	for k, v := range c.base.headers {
		headers[k] = v
	}
	for k, v := range s.headers {
		headers[k] = v
	}

	return Resolved{
		Protocol: protocol,
		Endpoint: endpoint,
		Headers:  headers,
		Timeout:  time.Duration(timeout) * time.Millisecond,
	}
}

func pushPath(base, subpath string) string {
	base = strings.TrimRight(base, "/")
	subpath = strings.TrimLeft(subpath, "/")
	return base + "/" + subpath
}
