// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfx/internal/hazard"
	"code.hybscloud.com/spin"
)

// FIFO is an unbounded multi-producer multi-consumer queue.
//
// Based on the Michael-Scott queue (PODC 1996): a singly linked list with
// a sentinel node at the head. Push links a node after the last node with
// a CAS on its next pointer; Pop advances head with a CAS, which is the
// linearization point. A lagging tail is swung forward cooperatively by
// whichever operation observes it.
//
// Unlinked nodes are retired through a hazard pointer domain and, once no
// goroutine can still dereference them, recycled through a bounded node
// cache. Hazard protection is what makes recycling safe: a node is never
// reused while an operation holds a reference to it.
//
// Push and Pop are lock-free. Neither sleeps nor blocks.
type FIFO[T any] struct {
	_       pad
	head    atomix.Pointer[fifoNode[T]]
	_       padPtr
	tail    atomix.Pointer[fifoNode[T]]
	_       padPtr
	hazards *hazard.Domain[fifoNode[T]]
	cache   *nodeCache[fifoNode[T]] // nil when recycling is disabled
}

type fifoNode[T any] struct {
	next atomix.Pointer[fifoNode[T]]
	data T
}

// Hazard slots held by an operation.
const (
	hpFirst = iota // tail in Push, head in Pop
	hpNext         // head.next in Pop
	hpSlots
)

// NewFIFO creates an empty FIFO with the default node cache.
func NewFIFO[T any]() *FIFO[T] {
	return newFIFO[T](DefaultRecycle)
}

func newFIFO[T any](recycle int) *FIFO[T] {
	q := &FIFO[T]{}
	if recycle > 0 {
		q.cache = newNodeCache[fifoNode[T]](max(recycle, 2))
	}
	q.hazards = hazard.New(hpSlots, q.recycle)

	sentinel := new(fifoNode[T])
	q.head.StoreRelaxed(sentinel)
	q.tail.StoreRelaxed(sentinel)
	return q
}

// Push appends v to the queue. Push always succeeds.
func (q *FIFO[T]) Push(v T) {
	g := q.hazards.Acquire()
	defer g.Release()

	n := q.alloc()
	n.data = v

	sw := spin.Wait{}
	var tail *fifoNode[T]
	for {
		tail = q.tail.LoadAcquire()
		g.Set(hpFirst, tail)
		if tail != q.tail.LoadAcquire() {
			continue
		}
		next := tail.next.LoadAcquire()
		if tail != q.tail.LoadAcquire() {
			continue
		}
		if next != nil {
			// Another push linked a node but has not swung tail yet.
			q.tail.CompareAndSwapAcqRel(tail, next)
			continue
		}
		// Release publishes n.data together with the link.
		if tail.next.CompareAndSwapAcqRel(nil, n) {
			break
		}
		sw.Once()
	}
	q.tail.CompareAndSwapAcqRel(tail, n)
}

// Pop removes the element at the front of the queue.
// Returns (zero-value, false) if the queue is empty.
func (q *FIFO[T]) Pop() (T, bool) {
	g := q.hazards.Acquire()
	defer g.Release()

	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		g.Set(hpFirst, head)
		if head != q.head.LoadAcquire() {
			continue
		}
		tail := q.tail.LoadAcquire()
		next := head.next.LoadAcquire()
		g.Set(hpNext, next)
		if head != q.head.LoadAcquire() || next != head.next.LoadAcquire() {
			continue
		}
		if next == nil {
			var zero T
			return zero, false
		}
		if head == tail {
			q.tail.CompareAndSwapAcqRel(tail, next)
			continue
		}
		if q.head.CompareAndSwapAcqRel(head, next) {
			// next is the new sentinel; only the winner touches its data.
			v := next.data
			var zero T
			next.data = zero
			g.Retire(head)
			return v, true
		}
		sw.Once()
	}
}

// Empty reports whether the queue looked empty at some instant during the
// call. The snapshot is unprotected and may be stale before Empty returns;
// use it for heuristics only, never for correctness.
func (q *FIFO[T]) Empty() bool {
	return q.head.LoadAcquire() == q.tail.LoadAcquire()
}

// Enqueue appends a copy of *elem. It never returns an error; the method
// exists so that FIFO satisfies Producer.
func (q *FIFO[T]) Enqueue(elem *T) error {
	q.Push(*elem)
	return nil
}

// Dequeue removes and returns the element at the front of the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *FIFO[T]) Dequeue() (T, error) {
	v, ok := q.Pop()
	if !ok {
		return v, ErrWouldBlock
	}
	return v, nil
}

// Reclaim recycles retired nodes held by idle operations. It is never
// required for correctness; Push and Pop reclaim on their own once enough
// nodes have been retired.
func (q *FIFO[T]) Reclaim() {
	q.hazards.Reclaim()
}

func (q *FIFO[T]) alloc() *fifoNode[T] {
	if q.cache != nil {
		if n := q.cache.get(); n != nil {
			return n
		}
	}
	return new(fifoNode[T])
}

// recycle is the hazard domain's reclaim function. No goroutine holds n.
func (q *FIFO[T]) recycle(n *fifoNode[T]) {
	if q.cache == nil {
		return
	}
	n.next.StoreRelaxed(nil)
	var zero T
	n.data = zero
	q.cache.put(n)
}
