// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazard

import (
	"cmp"
	"slices"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// minScan is the smallest retired-list length that triggers a scan.
const minScan = 64

// Domain owns a set of hazard records for nodes of type T.
//
// Records are never unlinked; a released record is reused by the next
// Acquire that finds it idle. The record list therefore grows to the
// maximum number of goroutines that were simultaneously inside an
// operation.
type Domain[T any] struct {
	records   atomix.Pointer[Guard[T]]
	count     atomix.Int64
	slots     int
	reclaim   func(*T)
	retired   atomix.Uint64
	reclaimed atomix.Uint64
}

// Guard is a hazard record held by one goroutine for the duration of an
// operation. A Guard must not be shared between goroutines.
type Guard[T any] struct {
	owned     atomix.Uint64 // 1 while acquired
	hazards   []atomix.Pointer[T]
	retired   []*T
	protected []*T      // scan scratch, reused across scans
	next      *Guard[T] // immutable once published
	domain    *Domain[T]
}

// New creates a domain whose guards have the given number of slots.
// reclaim is called exactly once for every retired node, after no guard
// publishes it. A nil reclaim drops nodes to the garbage collector.
//
// Panics if slots < 1.
func New[T any](slots int, reclaim func(*T)) *Domain[T] {
	if slots < 1 {
		panic("hazard: slots must be >= 1")
	}
	if reclaim == nil {
		reclaim = func(*T) {}
	}
	return &Domain[T]{slots: slots, reclaim: reclaim}
}

// Slots returns the number of hazard slots per guard.
func (d *Domain[T]) Slots() int {
	return d.slots
}

// Acquire returns an exclusively owned guard, reusing an idle record when
// one exists.
func (d *Domain[T]) Acquire() *Guard[T] {
	for g := d.records.LoadAcquire(); g != nil; g = g.next {
		if g.owned.LoadRelaxed() == 0 && g.owned.CompareAndSwapAcqRel(0, 1) {
			return g
		}
	}

	g := &Guard[T]{
		hazards: make([]atomix.Pointer[T], d.slots),
		domain:  d,
	}
	g.owned.StoreRelaxed(1)
	sw := spin.Wait{}
	for {
		head := d.records.LoadAcquire()
		g.next = head
		if d.records.CompareAndSwapAcqRel(head, g) {
			break
		}
		sw.Once()
	}
	d.count.AddAcqRel(1)
	return g
}

// Set publishes p in slot i. The caller must re-validate that p is still
// reachable from the shared structure before dereferencing it.
//
// The full barrier orders the publishing store before the caller's
// re-validating load; acquire and release alone permit store-load
// reordering, which would let a scan miss p.
func (g *Guard[T]) Set(i int, p *T) {
	g.hazards[i].StoreRelease(p)
	atomix.BarrierAcqRel()
}

// Clear empties slot i.
func (g *Guard[T]) Clear(i int) {
	g.hazards[i].StoreRelease(nil)
}

// Retire hands over a node that is no longer reachable from the shared
// structure. The node is reclaimed by a later scan once unprotected.
func (g *Guard[T]) Retire(p *T) {
	g.retired = append(g.retired, p)
	g.domain.retired.AddAcqRel(1)
	if len(g.retired) >= g.domain.threshold() {
		g.scan()
	}
}

// Release clears all slots and returns the record to the domain.
// Nodes retired through g that are still protected stay on the record
// until a later owner or Domain.Reclaim scans them.
func (g *Guard[T]) Release() {
	for i := range g.hazards {
		g.hazards[i].StoreRelease(nil)
	}
	g.owned.StoreRelease(0)
}

// Reclaim scans the retired lists of all idle records.
// Records owned by a goroutine are skipped.
func (d *Domain[T]) Reclaim() {
	for g := d.records.LoadAcquire(); g != nil; g = g.next {
		if g.owned.LoadRelaxed() != 0 || !g.owned.CompareAndSwapAcqRel(0, 1) {
			continue
		}
		g.scan()
		g.owned.StoreRelease(0)
	}
}

// Stats returns the number of nodes retired and reclaimed so far.
func (d *Domain[T]) Stats() (retired, reclaimed uint64) {
	return d.retired.LoadAcquire(), d.reclaimed.LoadAcquire()
}

func (d *Domain[T]) threshold() int {
	n := 2 * d.slots * int(d.count.LoadRelaxed())
	if n < minScan {
		return minScan
	}
	return n
}

func (g *Guard[T]) scan() {
	if len(g.retired) == 0 {
		return
	}

	// Pairs with the barrier in Set: the unlink that preceded Retire is
	// ordered before the hazard loads below.
	atomix.BarrierAcqRel()
	protected := g.protected[:0]
	for r := g.domain.records.LoadAcquire(); r != nil; r = r.next {
		for i := range r.hazards {
			if p := r.hazards[i].LoadAcquire(); p != nil {
				protected = append(protected, p)
			}
		}
	}
	slices.SortFunc(protected, comparePtr[T])

	kept := g.retired[:0]
	var n uint64
	for _, p := range g.retired {
		if _, ok := slices.BinarySearchFunc(protected, p, comparePtr[T]); ok {
			kept = append(kept, p)
			continue
		}
		g.domain.reclaim(p)
		n++
	}
	clear(g.retired[len(kept):])
	g.retired = kept
	clear(protected)
	g.protected = protected[:0]
	if n > 0 {
		g.domain.reclaimed.AddAcqRel(n)
	}
}

// comparePtr orders pointers by address. Heap objects do not move, so the
// order is stable for the duration of a scan.
func comparePtr[T any](a, b *T) int {
	return cmp.Compare(uintptr(unsafe.Pointer(a)), uintptr(unsafe.Pointer(b)))
}
