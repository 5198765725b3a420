// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx

// Queue is the combined producer-consumer interface implemented by FIFO.
//
// The interface matches the producer and consumer halves of the
// code.hybscloud.com/lfq queues, so code written against those interfaces
// can switch to an unbounded FIFO. Enqueue on an unbounded queue never
// fails; Dequeue returns ErrWouldBlock when the queue is empty.
//
// Length is intentionally not provided because accurate counts in
// lock-free algorithms require expensive cross-core synchronization.
type Queue[T any] interface {
	Producer[T]
	Consumer[T]
}

// Producer is the interface for enqueueing elements.
type Producer[T any] interface {
	// Enqueue adds a copy of *elem to the queue (non-blocking).
	Enqueue(elem *T) error
}

// Consumer is the interface for dequeueing elements.
type Consumer[T any] interface {
	// Dequeue removes and returns an element from the queue (non-blocking).
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	Dequeue() (T, error)
}

// Lookup is the read side of a Table, safe for concurrent use once the
// table has been published.
type Lookup[K comparable, V any] interface {
	Get(k K) (V, bool)
	Mod(k K) (Ref[V], bool)
	Len() int
}

var (
	_ Queue[int]          = (*FIFO[int])(nil)
	_ Lookup[uint64, int] = (*Table[uint64, int])(nil)
)
