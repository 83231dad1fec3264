// Package batch implements the bounded batching channel that decouples
// event producers from a dedicated drain worker: a lock-light FIFO of
// items accumulated into a user-defined batch type, drained by a
// goroutine that calls back into exporter code.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/emit-rs/emit-go/emit"
	"github.com/emit-rs/emit-go/internal/metrics"
)

// Channel is the user-defined batch type the BatchChannel is generic
// over. push/remaining/clear are exactly the contract the source
// names; ForEachItem is a Go-native addition needed so the worker can
// merge a retried batch's items back into the next accumulating batch
// without the channel needing its own merge method.
// Implementations should use a pointer receiver so Push mutates shared
// state.
type Channel[I any] interface {
	Push(item I)
	Remaining() int
	Clear()
	ForEachItem(f func(I) bool)
	// PopOldest removes and returns the oldest item, used by the
	// truncate overflow policy's "drop the oldest item(s) until space
	// is available". The source's Channel contract only names
	// push/remaining/clear; this is a Go-native addition because the
	// generic BatchChannel has no other way to evict a single item
	// from an opaque T.
	PopOldest() (item I, ok bool)
}

// Retry is returned by a Worker's OnBatch to ask for the batch to be
// retried after delay.
type Retry[T any] struct {
	Batch T
	Delay time.Duration
}

// Worker owns the receive side of a BatchChannel.
type Worker[T any] struct {
	// New constructs a fresh empty batch.
	New func() T
	// OnBatch processes a batch. ok=true means delivered; ok=false with
	// a non-nil retry means try again after retry.Delay; ok=false with
	// a nil retry means the batch is dropped (queue_batch_failed).
	OnBatch func(T) (retry *Retry[T], ok bool)
	// Sleep is the retry delay primitive; defaults to time.Sleep but is
	// pluggable so tests don't have to wait in real time.
	Sleep func(time.Duration)
	// Module tags the internal diagnostic event emitted when OnBatch
	// panics (see callOnBatch). Optional; the zero Path is fine, it
	// just means the diagnostic event carries an empty module.
	Module emit.Path
}

// CounterSource adapts a Counters reader into the shape
// internal/metrics.MetricSource expects (Sample() map[string]uint64).
// It lives here, not in internal/metrics, so that package never needs
// to import batch — Go's structural interface satisfaction means
// internal/metrics.Sampler can hold a CounterSource value without
// either package importing the other.
type CounterSource struct {
	Read func() Counters
}

// Sample implements internal/metrics.MetricSource.
func (c CounterSource) Sample() map[string]uint64 {
	v := c.Read()
	return map[string]uint64{
		"queue_full_truncated":  v.QueueFullTruncated,
		"queue_full_blocked":    v.QueueFullBlocked,
		"queue_batch_processed": v.QueueBatchProcessed,
		"queue_batch_failed":    v.QueueBatchFailed,
		"queue_batch_panicked":  v.QueueBatchPanicked,
		"queue_batch_retry":     v.QueueBatchRetry,
	}
}

// ErrFull is returned by Send when its context is done before space
// frees up under the await-space overflow policy; the item was not
// pushed and stays with the caller.
var ErrFull = errors.New("batch: channel full")

// Counters are the internal monotonic counters exposed by a
// BatchChannel, per the core's internal-metrics contract.
type Counters struct {
	QueueFullTruncated uint64
	QueueFullBlocked   uint64
	QueueBatchProcessed uint64
	QueueBatchFailed   uint64
	QueueBatchPanicked uint64
	QueueBatchRetry    uint64
}

type flushTarget struct {
	target uint64
	cb     func()
}

// BatchChannel is the bounded FIFO between producers and the drain
// worker. Capacity is measured in whatever unit Channel.Remaining
// reports, not queue length.
type BatchChannel[T Channel[I], I any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	cur      T
	draining bool
	closed   bool
	worker   Worker[T]

	counters Counters

	pushed         uint64 // items accepted by Send/TrySend
	resolvedTarget uint64 // items resolved (processed, truncated, or dropped)

	emptyCBs    []func()
	flushTgts   []flushTarget

	signal chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// New constructs a BatchChannel with the given capacity (in
// Channel.Remaining units) and starts its drain worker goroutine.
func New[T Channel[I], I any](capacity int, worker Worker[T]) *BatchChannel[T, I] {
	if worker.Sleep == nil {
		worker.Sleep = time.Sleep
	}
	bc := &BatchChannel[T, I]{
		capacity: capacity,
		cur:      worker.New(),
		worker:   worker,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	bc.cond = sync.NewCond(&bc.mu)
	bc.wg.Add(1)
	go bc.run()
	return bc
}

// Counters returns a snapshot of the channel's internal counters.
func (bc *BatchChannel[T, I]) Counters() Counters {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.counters
}

// TrySend implements the truncate overflow policy: if the item would
// exceed capacity, the oldest items are dropped one at a time with
// PopOldest until there is room, incrementing queue_full_truncated once
// for the send. Dropped items count as resolved for WhenFlushed. It
// never blocks.
func (bc *BatchChannel[T, I]) TrySend(item I) {
	bc.mu.Lock()
	bc.truncateAndPushLocked(item)
	bc.mu.Unlock()
	bc.wake()
}

// truncateAndPushLocked must be called with bc.mu held. Factored out of
// TrySend so a caller needing to push a whole burst of items as one
// atomic unit (e.g. a test simulating several sends arriving while the
// worker is paused) can hold the lock across the whole burst instead of
// racing the drain goroutine between individual TrySend calls.
func (bc *BatchChannel[T, I]) truncateAndPushLocked(item I) {
	if bc.capacity > 0 && bc.cur.Remaining()+1 > bc.capacity {
		bc.counters.QueueFullTruncated++
		for bc.capacity > 0 && bc.cur.Remaining()+1 > bc.capacity {
			if _, ok := bc.cur.PopOldest(); !ok {
				break
			}
			bc.resolvedTarget++
		}
	}
	bc.cur.Push(item)
	bc.pushed++
}

// Send implements the await-space overflow policy: it blocks until the
// worker drains enough room for item, or ctx is done, in which case it
// returns ErrFull and the caller retains item.
func (bc *BatchChannel[T, I]) Send(ctx context.Context, item I) error {
	bc.mu.Lock()
	for bc.capacity > 0 && bc.cur.Remaining()+1 > bc.capacity {
		bc.counters.QueueFullBlocked++
		bc.mu.Unlock()

		select {
		case <-ctx.Done():
			return ErrFull
		case <-time.After(time.Millisecond):
		}

		bc.mu.Lock()
	}
	bc.cur.Push(item)
	bc.pushed++
	bc.mu.Unlock()
	bc.wake()
	return nil
}

func (bc *BatchChannel[T, I]) wake() {
	select {
	case bc.signal <- struct{}{}:
	default:
	}
}

// WhenEmpty registers a one-shot callback fired the next time both the
// accumulating and in-flight batches are observed empty. Re-registering
// before the prior callback fires replaces it.
func (bc *BatchChannel[T, I]) WhenEmpty(cb func()) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.cur.Remaining() == 0 && !bc.draining {
		bc.mu.Unlock()
		cb()
		bc.mu.Lock()
		return
	}
	bc.emptyCBs = []func(){cb}
}

// WhenFlushed registers a one-shot callback fired once every item sent
// strictly before this call has been delivered or irrecoverably
// dropped. Per the documented open-question resolution (see
// DESIGN.md), a flush registered while a retry is in flight waits for
// that retry to fully drain, not just for the items that existed at
// call time.
func (bc *BatchChannel[T, I]) WhenFlushed(cb func()) {
	bc.mu.Lock()
	target := bc.pushed
	if bc.resolvedTarget >= target {
		bc.mu.Unlock()
		cb()
		return
	}
	bc.flushTgts = append(bc.flushTgts, flushTarget{target: target, cb: cb})
	bc.mu.Unlock()
}

// BlockingFlush registers a WhenFlushed callback that closes a channel
// and waits for it up to timeout, returning false on timeout (remaining in-flight items
// are left for the next flush).
func (bc *BatchChannel[T, I]) BlockingFlush(timeout time.Duration) bool {
	return bc.BlockingFlushContext(contextWithTimeout(timeout))
}

// BlockingFlushContext is the Go-idiomatic answer to "unexpectedly
// long" flushes under a misbehaving exporter: cancellation is explicit
// via ctx rather than silently capped by the library.
func (bc *BatchChannel[T, I]) BlockingFlushContext(ctx context.Context) bool {
	done := make(chan struct{})
	var once sync.Once
	bc.WhenFlushed(func() { once.Do(func() { close(done) }) })

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func contextWithTimeout(d time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	_ = cancel // the context is abandoned once BlockingFlush returns; the
	// timer fires regardless, which is the same tradeoff the stdlib's own
	// context.WithTimeout examples make for a fire-and-forget deadline.
	return ctx
}

// Close stops the worker goroutine. It does not drain remaining items;
// call BlockingFlush first if that's required.
func (bc *BatchChannel[T, I]) Close() {
	bc.mu.Lock()
	if bc.closed {
		bc.mu.Unlock()
		return
	}
	bc.closed = true
	bc.mu.Unlock()
	close(bc.done)
	bc.wg.Wait()
}

func (bc *BatchChannel[T, I]) run() {
	defer bc.wg.Done()
	for {
		select {
		case <-bc.done:
			return
		case <-bc.signal:
		}
		bc.drainOnce()
	}
}

// drainOnce swaps the accumulating batch for an empty one and, if it
// was non-empty, hands it to the worker's OnBatch, looping on retries.
func (bc *BatchChannel[T, I]) drainOnce() {
	for {
		bc.mu.Lock()
		if bc.cur.Remaining() == 0 {
			bc.mu.Unlock()
			return
		}
		batch := bc.cur
		itemCount := 0
		bc.cur.ForEachItem(func(I) bool {
			itemCount++
			return true
		})
		bc.cur = bc.worker.New()
		bc.draining = true
		bc.mu.Unlock()

		retry, ok, panicked := bc.callOnBatch(batch)

		bc.mu.Lock()
		bc.draining = false
		switch {
		case panicked:
			// QueueBatchPanicked was already incremented inside
			// callOnBatch's recover; panicked and failed are distinct,
			// mutually exclusive outcomes, so don't also count this as
			// a QueueBatchFailed below. The batch is still dropped, so
			// flush waiters still need to see it resolved.
			bc.resolveLocked(uint64(itemCount))
		case ok:
			bc.counters.QueueBatchProcessed++
			bc.resolveLocked(uint64(itemCount))
		case retry != nil:
			bc.counters.QueueBatchRetry++
			// Merge the retried items back into whatever has
			// accumulated since, preserving interleaving with newly
			// arrived items per §4.8.
			retried := 0
			retry.Batch.ForEachItem(func(item I) bool {
				bc.cur.Push(item)
				retried++
				return true
			})
			// Items the retry batch leaves out are dropped for good.
			if retried < itemCount {
				bc.resolveLocked(uint64(itemCount - retried))
			}
			delay := retry.Delay
			bc.mu.Unlock()
			bc.worker.Sleep(delay)
			continue
		default:
			bc.counters.QueueBatchFailed++
			bc.resolveLocked(uint64(itemCount))
		}

		select {
		case <-bc.done:
			bc.mu.Unlock()
			return
		default:
		}

		if bc.cur.Remaining() == 0 {
			bc.fireEmptyLocked()
		}
		bc.mu.Unlock()
	}
}

// callOnBatch invokes the worker's OnBatch, recovering a panic so the
// worker goroutine survives: the batch is dropped, queue_batch_panicked
// is incremented, a diagnostic event carrying the recovered value and
// its stack trace is emitted through the internal runtime (§7), and
// panicked is reported back to drainOnce so it doesn't also count the
// drop as a queue_batch_failed outcome. Panics at an emit callsite are
// never caught here — only panics inside OnBatch are, per §7.
func (bc *BatchChannel[T, I]) callOnBatch(batch T) (retry *Retry[T], ok bool, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			bc.mu.Lock()
			bc.counters.QueueBatchPanicked++
			bc.mu.Unlock()

			props := metrics.CapturePanic(r)
			emit.Internal().Emit(bc.worker.Module, emit.Literal("batch worker panicked"), nil, props)

			retry, ok, panicked = nil, false, true
		}
	}()
	retry, ok = bc.worker.OnBatch(batch)
	return retry, ok, false
}

// resolveLocked must be called with bc.mu held.
func (bc *BatchChannel[T, I]) resolveLocked(n uint64) {
	bc.resolvedTarget += n
	bc.fireFlushedLocked()
}

func (bc *BatchChannel[T, I]) fireFlushedLocked() {
	remaining := bc.flushTgts[:0]
	for _, t := range bc.flushTgts {
		if bc.resolvedTarget >= t.target {
			cb := t.cb
			bc.mu.Unlock()
			cb()
			bc.mu.Lock()
		} else {
			remaining = append(remaining, t)
		}
	}
	bc.flushTgts = remaining
}

func (bc *BatchChannel[T, I]) fireEmptyLocked() {
	cbs := bc.emptyCBs
	bc.emptyCBs = nil
	for _, cb := range cbs {
		bc.mu.Unlock()
		cb()
		bc.mu.Lock()
	}
}
