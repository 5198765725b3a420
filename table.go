// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx

import (
	"iter"
	"slices"

	"code.hybscloud.com/atomix"
)

const (
	bucketSize   = 4
	maxAttempts  = 128 // relocations before a key spills to overflow
	lateAttempt  = 64  // attempts after which lowLoad also triggers a resize
	highLoad     = 0.9
	lowLoad      = 0.75
	minTableSize = 8
)

// Table maps a fixed, known population of keys to values using two-way
// cuckoo hashing over buckets of 4 slots, with a linear overflow area for
// keys that cannot be placed.
//
// The intended pattern is write-once-then-read-many: load the table with
// Put from a single goroutine, publish it to readers through any
// happens-before edge (channel send, WaitGroup, atomic store), and then
// call Get and Mod from any number of goroutines without locking.
//
// Put, Reset, Swap and CopyFrom are exclusive: none of them may run
// concurrently with any other call on the same Table, including Get and
// Mod. A resize happens only inside Put.
//
// Memory: 2 * buckets * 4 slots plus one slot per overflowed key.
// The overflow area never shrinks.
type Table[K comparable, V any] struct {
	size       uint64 // buckets per table, 0 or a power of 2
	table1     []bucket[K, V]
	table2     []bucket[K, V]
	overflow   []entry[K, V] // newest first
	elements   uint64
	generation atomix.Uint64 // bumped by every structural mutation
	hash       func(K) uint64
	empty      K
}

type entry[K comparable, V any] struct {
	key K
	val V
}

type bucket[K comparable, V any] [bucketSize]entry[K, V]

// TableStats is a snapshot of a table's shape.
type TableStats struct {
	Len        int     // live keys
	Buckets    int     // buckets per table
	Overflow   int     // keys stored in the overflow area
	LoadFactor float64 // Len / (2*Buckets + Overflow)
}

// NewTable creates an empty table.
//
// hash maps keys to 64-bit values; the table derives both bucket indexes
// from it, so a hash that sends more than 8 keys to the same value pushes
// those keys into the slow overflow area.
//
// empty marks free slots. The caller must guarantee that empty is never
// passed to Put; the table does not check.
//
// Panics if hash is nil.
func NewTable[K comparable, V any](hash func(K) uint64, empty K) *Table[K, V] {
	if hash == nil {
		panic("lfx: nil hash function")
	}
	return &Table[K, V]{hash: hash, empty: empty}
}

// Put stores v under k, overwriting any previous value. Put never fails:
// when relocation gives up, the key goes to the overflow area.
//
// Put invalidates every Ref previously returned by Mod.
func (t *Table[K, V]) Put(k K, v V) bool {
	t.generation.AddAcqRel(1)

	if p := t.findOverflow(k); p != nil {
		*p = v
		return true
	}

	for attempt := range maxAttempts {
		if lf := t.loadFactor(); lf > highLoad || (lf > lowLoad && attempt >= lateAttempt) {
			t.resize()
		}

		h := t.hash(k)
		b1 := t.bucket(primary, h)
		b2 := t.bucket(secondary, h)
		if p := b1.find(k, t.empty); p != nil {
			*p = v
			return true
		}
		if p := b2.find(k, t.empty); p != nil {
			*p = v
			return true
		}
		if b1.insert(k, v, t.empty) || b2.insert(k, v, t.empty) {
			t.elements++
			return true
		}

		victim := b1
		if attempt&1 == 1 {
			victim = b2
		}
		k, v = victim.evict(k, v, t.empty)
		if k == t.empty {
			panic("lfx: evicted an empty slot")
		}
	}

	t.overflow = slices.Insert(t.overflow, 0, entry[K, V]{key: k, val: v})
	t.elements++
	return true
}

// Get returns the value stored under k.
// Get never mutates the table and is safe for concurrent use with other
// Get and Mod calls.
func (t *Table[K, V]) Get(k K) (V, bool) {
	if p := t.lookup(k); p != nil {
		return *p, true
	}
	var zero V
	return zero, false
}

// Mod returns a reference to the value stored under k, allowing it to be
// updated in place. Concurrent updates through the reference must be
// synchronized by the caller (for example by storing an atomic type or a
// pointer as V).
//
// The reference becomes stale at the next Put, Reset, Swap or CopyFrom.
func (t *Table[K, V]) Mod(k K) (Ref[V], bool) {
	p := t.lookup(k)
	if p == nil {
		return Ref[V]{}, false
	}
	return Ref[V]{ptr: p, gen: &t.generation, seen: t.generation.LoadAcquire()}, true
}

// Len returns the number of keys in the table.
func (t *Table[K, V]) Len() int {
	return int(t.elements)
}

// Stats returns a snapshot of the table's shape.
func (t *Table[K, V]) Stats() TableStats {
	return TableStats{
		Len:        int(t.elements),
		Buckets:    int(t.size),
		Overflow:   len(t.overflow),
		LoadFactor: t.loadFactor(),
	}
}

// All returns an iterator over every key-value pair: the first table, then
// the second, then the overflow area. The table must not be modified
// during iteration.
func (t *Table[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, tbl := range [...][]bucket[K, V]{t.table1, t.table2} {
			for i := range tbl {
				for j := range tbl[i] {
					e := &tbl[i][j]
					if e.key == t.empty {
						break
					}
					if !yield(e.key, e.val) {
						return
					}
				}
			}
		}
		for i := range t.overflow {
			if !yield(t.overflow[i].key, t.overflow[i].val) {
				return
			}
		}
	}
}

// Reset releases all storage and leaves the table empty.
func (t *Table[K, V]) Reset() {
	t.generation.AddAcqRel(1)
	t.size = 0
	t.table1 = nil
	t.table2 = nil
	t.overflow = nil
	t.elements = 0
}

// Swap exchanges the contents of t and other, including their hash
// functions and empty keys.
func (t *Table[K, V]) Swap(other *Table[K, V]) {
	if other == t {
		return
	}
	t.generation.AddAcqRel(1)
	other.generation.AddAcqRel(1)
	t.size, other.size = other.size, t.size
	t.table1, other.table1 = other.table1, t.table1
	t.table2, other.table2 = other.table2, t.table2
	t.overflow, other.overflow = other.overflow, t.overflow
	t.elements, other.elements = other.elements, t.elements
	t.hash, other.hash = other.hash, t.hash
	t.empty, other.empty = other.empty, t.empty
}

// CopyFrom replaces the contents of t with a copy of other.
// Values are copied shallowly.
func (t *Table[K, V]) CopyFrom(other *Table[K, V]) {
	if other == t {
		return
	}
	t.Reset()
	t.size = other.size
	t.table1 = slices.Clone(other.table1)
	t.table2 = slices.Clone(other.table2)
	t.overflow = slices.Clone(other.overflow)
	t.elements = other.elements
	t.hash = other.hash
	t.empty = other.empty
}

func (t *Table[K, V]) loadFactor() float64 {
	if t.size == 0 {
		return 1.0
	}
	return float64(t.elements) / float64(2*t.size+uint64(len(t.overflow)))
}

func (t *Table[K, V]) bucket(ix index, h uint64) *bucket[K, V] {
	i := ix.of(h, t.size)
	if i >= t.size {
		panic("lfx: bucket index out of range")
	}
	if ix == primary {
		return &t.table1[i]
	}
	return &t.table2[i]
}

func (t *Table[K, V]) lookup(k K) *V {
	if k == t.empty {
		return nil
	}
	if t.size > 0 {
		h := t.hash(k)
		if p := t.bucket(primary, h).find(k, t.empty); p != nil {
			return p
		}
		if p := t.bucket(secondary, h).find(k, t.empty); p != nil {
			return p
		}
	}
	return t.findOverflow(k)
}

func (t *Table[K, V]) findOverflow(k K) *V {
	for i := range t.overflow {
		if t.overflow[i].key == k {
			return &t.overflow[i].val
		}
	}
	return nil
}

func (t *Table[K, V]) resize() {
	size := uint64(minTableSize)
	if t.size > 0 {
		size = t.size * 2
	}
	t.table1 = t.rehash(t.table1, size, primary)
	t.table2 = t.rehash(t.table2, size, secondary)
	t.size = size
}

// grow doubles the table until it has at least size buckets.
func (t *Table[K, V]) grow(size uint64) {
	for t.size < size {
		t.resize()
	}
}

func (t *Table[K, V]) rehash(old []bucket[K, V], size uint64, ix index) []bucket[K, V] {
	tbl := make([]bucket[K, V], size)
	var zero K
	if t.empty != zero {
		for i := range tbl {
			for j := range tbl[i] {
				tbl[i][j].key = t.empty
			}
		}
	}

	for i := range old {
		for j := range old[i] {
			e := &old[i][j]
			if e.key == t.empty {
				break
			}
			b := ix.of(t.hash(e.key), size)
			if b >= size {
				panic("lfx: bucket index out of range")
			}
			if !tbl[b].insert(e.key, e.val, t.empty) {
				panic("lfx: rehash overflowed a bucket")
			}
		}
	}
	return tbl
}

// find returns the address of k's value in b. Buckets are packed, so the
// scan stops at the first free slot.
func (b *bucket[K, V]) find(k, empty K) *V {
	for i := range b {
		switch b[i].key {
		case k:
			return &b[i].val
		case empty:
			return nil
		}
	}
	return nil
}

func (b *bucket[K, V]) insert(k K, v V, empty K) bool {
	for i := range b {
		if b[i].key == empty {
			b[i] = entry[K, V]{key: k, val: v}
			return true
		}
	}
	return false
}

// evict shifts every slot one position toward the end, stores (k, v) in
// the first slot and returns the pair pushed out of the last slot.
func (b *bucket[K, V]) evict(k K, v V, empty K) (K, V) {
	last := b[bucketSize-1]
	for i := bucketSize - 1; i > 0; i-- {
		if b[i].key == empty {
			panic("lfx: evicting from a bucket with free slots")
		}
		b[i] = b[i-1]
	}
	b[0] = entry[K, V]{key: k, val: v}
	return last.key, last.val
}
