// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfx provides two concurrent primitives for server internals:
//
//   - Table: a cuckoo hash table for a fixed key population, written once
//     and then read lock-free from many goroutines
//   - FIFO: an unbounded multi-producer multi-consumer lock-free queue
//
// # Table
//
// Table maps keys to values with two-way cuckoo hashing. Each key has one
// candidate bucket of 4 slots in each of two tables; a full pair of buckets
// evicts an occupant to its alternate bucket, and a key that cannot be
// placed after 128 relocations spills into a linear overflow area. Put
// never fails.
//
// Typical use maps stable identifiers to mutable state:
//
//	t := lfx.NewTable[uint64, *atomix.Uint64](lfx.MapHasher[uint64](), 0)
//	for _, id := range serverIDs {
//	    t.Put(id, new(atomix.Uint64))
//	}
//
//	// Publish t to workers (channel, WaitGroup, ...), then from any goroutine:
//	if c, ok := t.Get(id); ok {
//	    c.AddAcqRel(1)
//	}
//
// The empty key passed to NewTable marks free slots and must never be used
// as a real key. The table does not check this.
//
// Put is single-writer and exclusive: it must not run concurrently with
// another Put, Get or Mod on the same table, because Put may resize the
// tables or relocate values. Get and Mod are safe for concurrent use once
// loading is complete and the table has been published.
//
// Mod returns a Ref, a lease on the stored value's address. The lease ends
// at the next Put, Reset, Swap or CopyFrom; Ptr panics on a stale Ref:
//
//	r, ok := t.Mod(id)
//	if ok {
//	    *r.Ptr() = newState // caller synchronizes concurrent writers
//	}
//
// A table pre-sized for a known population avoids intermediate resizes:
//
//	t := lfx.BuildTable[uint64, State](lfx.New().Reserve(4096), hash, 0)
//
// # FIFO
//
// FIFO is the Michael-Scott queue. Push and Pop are lock-free; a lagging
// tail pointer is repaired by whichever operation finds it. Pop
// linearizes at the CAS that advances head, so all pops observe one total
// order consistent with the order in which pushes linked their nodes.
//
//	q := lfx.NewFIFO[Task]()
//
//	// Any number of producers
//	q.Push(task)
//
//	// Any number of consumers
//	if task, ok := q.Pop(); ok {
//	    task.Run()
//	}
//
// FIFO also implements [Queue], the producer/consumer interface shared
// with the bounded lfq queues; Dequeue reports an empty queue with
// [ErrWouldBlock]:
//
//	backoff := iox.Backoff{}
//	for {
//	    task, err := q.Dequeue()
//	    if err != nil {
//	        backoff.Wait()
//	        continue
//	    }
//	    backoff.Reset()
//	    task.Run()
//	}
//
// Empty is an unprotected snapshot and may be stale by the time it
// returns. Use it for heuristics only.
//
// # Node Reclamation
//
// Popped nodes are retired through a hazard pointer domain. Every
// operation publishes the nodes it is about to dereference; a retired node
// is recycled into a bounded node cache only after no operation publishes
// it. Recycling keeps steady-state Push free of allocation, and hazard
// protection is what prevents a recycled node from being mistaken for its
// previous incarnation (ABA).
//
//	q := lfx.BuildFIFO[Task](lfx.New().Recycle(8192)) // larger cache
//	q := lfx.BuildFIFO[Task](lfx.New().Recycle(0))    // no recycling
//
// # Race Detection
//
// FIFO links, hazard records and the node cache synchronize through atomix
// operations, which the race detector cannot follow. Concurrent tests and
// examples are skipped when [RaceEnabled] is true or excluded with the
// !race build tag.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package lfx
