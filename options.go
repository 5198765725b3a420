// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx

import "unsafe"

// DefaultRecycle is the node cache capacity used by NewFIFO.
const DefaultRecycle = 1024

// Options configures table and queue creation.
type Options struct {
	// Table: expected key population (0 = grow from empty)
	reserve int

	// FIFO: node cache capacity (0 = no recycling)
	recycle int
}

// Builder creates tables and queues with fluent configuration.
//
// Example:
//
//	// Table pre-sized for a known population
//	t := lfx.BuildTable[uint64, *Server](lfx.New().Reserve(4096), hash, 0)
//
//	// FIFO with a larger node cache
//	q := lfx.BuildFIFO[Task](lfx.New().Recycle(8192))
type Builder struct {
	opts Options
}

// New creates a builder with default options.
func New() *Builder {
	return &Builder{opts: Options{recycle: DefaultRecycle}}
}

// Reserve declares the number of keys a table is expected to hold.
// The table starts large enough to store n keys without resizing.
//
// Panics if n < 0.
func (b *Builder) Reserve(n int) *Builder {
	if n < 0 {
		panic("lfx: reserve must be >= 0")
	}
	b.opts.reserve = n
	return b
}

// Recycle sets the capacity of the FIFO's node cache.
// Capacity rounds up to the next power of 2. Zero disables recycling and
// leaves every reclaimed node to the garbage collector.
//
// Panics if n < 0.
func (b *Builder) Recycle(n int) *Builder {
	if n < 0 {
		panic("lfx: recycle must be >= 0")
	}
	b.opts.recycle = n
	return b
}

// BuildTable creates a Table using the builder's options.
// See NewTable for the hash and empty parameters.
func BuildTable[K comparable, V any](b *Builder, hash func(K) uint64, empty K) *Table[K, V] {
	t := NewTable[K, V](hash, empty)
	if b.opts.reserve > 0 {
		t.grow(reserveSize(b.opts.reserve))
	}
	return t
}

// BuildFIFO creates a FIFO using the builder's options.
func BuildFIFO[T any](b *Builder) *FIFO[T] {
	return newFIFO[T](b.opts.recycle)
}

// reserveSize returns the bucket count per table that keeps n keys at or
// below the early-resize load factor.
func reserveSize(n int) uint64 {
	size := uint64(minTableSize)
	for float64(n) > lowLoad*float64(2*size) {
		size <<= 1
	}
	return size
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// ptrSize is the size of a pointer in bytes.
const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padPtr is padding to fill cache line after pointer-sized field.
type padPtr [64 - ptrSize]byte
