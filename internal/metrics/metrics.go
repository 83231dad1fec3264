// Package metrics turns the runtime's own internal counters into metric
// events: a MetricSource exposes named, monotonic counters, and Sampler
// periodically reads them and emits one "count" metric event per name.
package metrics

import (
	"bytes"
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/DataDog/gostackparse"

	"github.com/emit-rs/emit-go/emit"
)

// MetricSource exposes a snapshot of named monotonic counters. This
// package deliberately has no dependency on package batch: batch is
// the one consumer of CapturePanic (its panic-recovery path), so
// batch.CounterSource (not a type here) is what adapts a
// *batch.BatchChannel's Counters into this interface, satisfying it
// structurally rather than by import.
type MetricSource interface {
	// Sample returns the current value of every counter this source
	// owns, keyed by metric name.
	Sample() map[string]uint64
}

// Sampler periodically samples a set of MetricSources and emits their
// counters as "count"-aggregated metric events through a Runtime.
type Sampler struct {
	Runtime emit.Runtime
	Module  emit.Path
	Sources []MetricSource

	mu   sync.Mutex
	last map[string]uint64
}

// SampleOnce takes one reading, emitting a metric event per counter
// that exists. The emitted value is always the source's reported
// cumulative total; no earlier reading is kept, matching the core's
// "metrics report running totals, not deltas, by default" convention.
func (s *Sampler) SampleOnce() {
	s.mu.Lock()
	if s.last == nil {
		s.last = map[string]uint64{}
	}
	s.mu.Unlock()

	for _, src := range s.Sources {
		for name, value := range src.Sample() {
			s.emit(name, value)
		}
	}
}

func (s *Sampler) emit(name string, value uint64) {
	props := emit.MapProps{
		emit.KeyEvtKind:     emit.Capture(emit.EvtKindMetric),
		emit.KeyMetricName:  emit.Capture(name),
		emit.KeyMetricAgg:   emit.Capture(emit.MetricAggCount),
		emit.KeyMetricValue: emit.Capture(value),
	}
	s.Runtime.Emit(s.Module, emit.Literal(name), nil, props)
}

// Run samples every interval until ctx is done.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SampleOnce()
		}
	}
}

// CapturePanic formats a recovered panic value and the current
// goroutine's stack into structured properties suitable for an error
// log event; batch's panic recovery uses it to build the diagnostic
// event for a panicked batch.
func CapturePanic(recovered any) emit.Props {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, false)
	goroutines, _ := gostackparse.Parse(bytes.NewReader(buf[:n]))

	props := emit.MapProps{
		"panic": emit.Capture(recovered),
	}
	if len(goroutines) > 0 {
		props["panic_state"] = emit.Capture(goroutines[0].State)
		frames := make([]emit.Value, 0, len(goroutines[0].Stack))
		for _, f := range goroutines[0].Stack {
			frames = append(frames, emit.Capture(f.Func+" "+f.File))
		}
		props["panic_stack"] = emit.Capture(frames)
	}
	return props
}
