// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// nodeCache is a bounded free list of reclaimed nodes.
//
// It is the lfq MPMCSeq ring (Vyukov's per-slot sequence queue) holding
// node pointers, with the same Enqueue/Dequeue protocol as put/get. The
// difference is the full and empty policy: put drops the node to the
// garbage collector instead of returning ErrWouldBlock, and get returns
// nil.
type nodeCache[T any] struct {
	_      pad
	tail   atomix.Uint64
	_      pad
	head   atomix.Uint64
	_      pad
	slots  []nodeCacheSlot[T]
	mask   uint64
	length uint64
}

type nodeCacheSlot[T any] struct {
	seq  atomix.Uint64
	node *T
	_    padPtr
}

func newNodeCache[T any](capacity int) *nodeCache[T] {
	if capacity < 2 {
		panic("lfx: node cache capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	c := &nodeCache[T]{
		slots:  make([]nodeCacheSlot[T], n),
		mask:   n - 1,
		length: n,
	}
	for i := uint64(0); i < n; i++ {
		c.slots[i].seq.StoreRelaxed(i)
	}
	return c
}

func (c *nodeCache[T]) put(n *T) bool {
	sw := spin.Wait{}
	for {
		tail := c.tail.LoadAcquire()
		slot := &c.slots[tail&c.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail)

		if diff == 0 {
			if c.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.node = n
				slot.seq.StoreRelease(tail + 1)
				return true
			}
		} else if diff < 0 {
			return false
		}
		sw.Once()
	}
}

func (c *nodeCache[T]) get() *T {
	sw := spin.Wait{}
	for {
		head := c.head.LoadAcquire()
		slot := &c.slots[head&c.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head+1)

		if diff == 0 {
			if c.head.CompareAndSwapAcqRel(head, head+1) {
				n := slot.node
				slot.node = nil
				slot.seq.StoreRelease(head + c.length)
				return n
			}
		} else if diff < 0 {
			return nil
		}
		sw.Once()
	}
}

func (c *nodeCache[T]) capacity() int {
	return int(c.length)
}
