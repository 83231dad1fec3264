// Package batchexport provides concrete batch.Channel implementations
// for exporters to plug into batch.New: CountChannel bounds by item
// count, EncodedChannel bounds by the msgpack-encoded byte size of its
// accumulated items, the two overflow-accounting strategies named in
// §4.8's capacity discussion.
package batchexport

import (
	"github.com/vmihailenco/msgpack/v5"
)

// CountChannel accumulates items in a plain FIFO slice; Remaining
// reports the item count, so a BatchChannel built over it treats
// capacity as "at most N items".
type CountChannel[T any] struct {
	items []T
}

func NewCountChannel[T any]() *CountChannel[T] { return &CountChannel[T]{} }

func (c *CountChannel[T]) Push(item T) { c.items = append(c.items, item) }

func (c *CountChannel[T]) Remaining() int { return len(c.items) }

func (c *CountChannel[T]) Clear() { c.items = nil }

func (c *CountChannel[T]) ForEachItem(f func(T) bool) {
	for _, item := range c.items {
		if !f(item) {
			return
		}
	}
}

func (c *CountChannel[T]) PopOldest() (item T, ok bool) {
	if len(c.items) == 0 {
		return item, false
	}
	item = c.items[0]
	c.items = c.items[1:]
	return item, true
}

// Items returns the channel's current items, in FIFO order. Intended
// for use from a Worker's OnBatch, which receives a swapped-out
// CountChannel snapshot to encode and send.
func (c *CountChannel[T]) Items() []T { return c.items }

// EncodedChannel accumulates items by their msgpack-encoded size, so a
// BatchChannel built over it treats capacity as "at most N encoded
// bytes" — useful when the exporter's transport has a payload size
// limit rather than an item-count limit.
type EncodedChannel[T any] struct {
	items   []T
	encoded [][]byte
	size    int
}

func NewEncodedChannel[T any]() *EncodedChannel[T] { return &EncodedChannel[T]{} }

func (c *EncodedChannel[T]) Push(item T) {
	b, err := msgpack.Marshal(item)
	if err != nil {
		// An item that can't be encoded can't be sized either; drop it
		// rather than silently reporting the wrong Remaining().
		return
	}
	c.items = append(c.items, item)
	c.encoded = append(c.encoded, b)
	c.size += len(b)
}

func (c *EncodedChannel[T]) Remaining() int { return c.size }

func (c *EncodedChannel[T]) Clear() {
	c.items = nil
	c.encoded = nil
	c.size = 0
}

func (c *EncodedChannel[T]) ForEachItem(f func(T) bool) {
	for _, item := range c.items {
		if !f(item) {
			return
		}
	}
}

func (c *EncodedChannel[T]) PopOldest() (item T, ok bool) {
	if len(c.items) == 0 {
		return item, false
	}
	item = c.items[0]
	c.items = c.items[1:]
	c.size -= len(c.encoded[0])
	c.encoded = c.encoded[1:]
	return item, true
}

// Bytes concatenates the channel's items' encoded form into a single
// msgpack array payload ready to send.
func (c *EncodedChannel[T]) Bytes() ([]byte, error) {
	return msgpack.Marshal(c.items)
}
