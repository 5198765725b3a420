// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx

import (
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
)

func TestRoundToPow2(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 2}, {1, 2}, {2, 2}, {3, 4}, {4, 4}, {5, 8},
		{1000, 1024}, {1024, 1024}, {1025, 2048},
	}
	for _, tt := range tests {
		if got := roundToPow2(tt.in); got != tt.want {
			t.Fatalf("roundToPow2(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNodeCacheFullEmpty(t *testing.T) {
	c := newNodeCache[int](3)
	if c.capacity() != 4 {
		t.Fatalf("capacity: got %d, want 4", c.capacity())
	}
	if c.get() != nil {
		t.Fatal("get on empty cache: got node")
	}

	nodes := make([]*int, 5)
	for i := range nodes {
		nodes[i] = new(int)
	}
	for i := range 4 {
		if !c.put(nodes[i]) {
			t.Fatalf("put(%d): cache full", i)
		}
	}
	if c.put(nodes[4]) {
		t.Fatal("put on full cache: accepted")
	}

	for i := range 4 {
		if got := c.get(); got != nodes[i] {
			t.Fatalf("get(%d): wrong node", i)
		}
	}
	if c.get() != nil {
		t.Fatal("get after drain: got node")
	}

	// Second lap exercises sequence wrap-around.
	for i := range 4 {
		c.put(nodes[i])
	}
	for i := range 4 {
		if got := c.get(); got != nodes[i] {
			t.Fatalf("lap 2 get(%d): wrong node", i)
		}
	}
}

func TestNodeCacheCapacityPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic")
		}
	}()
	newNodeCache[int](1)
}

// TestNodeCacheConcurrent checks that no node is handed out twice while
// several goroutines put and get concurrently.
func TestNodeCacheConcurrent(t *testing.T) {
	if RaceEnabled {
		t.Skip("skip: slot handoff synchronizes through atomix")
	}

	const workers = 8
	const perWorker = 10000

	c := newNodeCache[atomix.Int32](64)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			own := new(atomix.Int32)
			for range perWorker {
				if own != nil && c.put(own) {
					own = nil
				}
				if own == nil {
					own = c.get()
				}
				if own != nil {
					// Exclusive ownership: a second holder would see 1.
					if own.Add(1) != 1 {
						t.Errorf("node held by two goroutines")
						return
					}
					own.Add(-1)
				}
			}
		}()
	}
	wg.Wait()
}

// =============================================================================
// FIFO node recycling
// =============================================================================

// TestFIFORecyclesNodes tests that retired nodes reach the node cache with
// their links and payloads cleared.
func TestFIFORecyclesNodes(t *testing.T) {
	q := newFIFO[*int](128)

	for i := range minRetireScan {
		v := i
		q.Push(&v)
		if _, ok := q.Pop(); !ok {
			t.Fatalf("Pop(%d): empty", i)
		}
	}

	retired, reclaimed := q.hazards.Stats()
	if retired != minRetireScan {
		t.Fatalf("retired: got %d, want %d", retired, minRetireScan)
	}
	// The last retired node was still published by the popping guard.
	if reclaimed != minRetireScan-1 {
		t.Fatalf("reclaimed: got %d, want %d", reclaimed, minRetireScan-1)
	}

	q.Reclaim()
	if _, reclaimed = q.hazards.Stats(); reclaimed != minRetireScan {
		t.Fatalf("reclaimed after Reclaim: got %d, want %d", reclaimed, minRetireScan)
	}

	head := q.head.Load()
	cached := 0
	for n := q.cache.get(); n != nil; n = q.cache.get() {
		if n == head {
			t.Fatal("sentinel node found in cache")
		}
		if n.next.Load() != nil || n.data != nil {
			t.Fatal("recycled node not cleared")
		}
		cached++
	}
	if cached != minRetireScan {
		t.Fatalf("cached nodes: got %d, want %d", cached, minRetireScan)
	}
}

// TestFIFOReusesCachedNodes tests that Push takes nodes from the cache.
func TestFIFOReusesCachedNodes(t *testing.T) {
	q := newFIFO[int](8)

	n := new(fifoNode[int])
	q.cache.put(n)
	q.Push(7)
	if q.head.Load().next.Load() != n {
		t.Fatal("Push did not use the cached node")
	}
	if v, ok := q.Pop(); !ok || v != 7 {
		t.Fatalf("Pop: got (%d, %v), want (7, true)", v, ok)
	}
}

func TestFIFONoRecycle(t *testing.T) {
	q := newFIFO[int](0)
	if q.cache != nil {
		t.Fatal("recycle=0: cache allocated")
	}
	for i := range 2 * minRetireScan {
		q.Push(i)
		q.Pop()
	}
	q.Reclaim()
	retired, reclaimed := q.hazards.Stats()
	if retired != reclaimed {
		t.Fatalf("retired %d, reclaimed %d", retired, reclaimed)
	}
}

// minRetireScan is the hazard domain's minimum scan threshold.
const minRetireScan = 64
