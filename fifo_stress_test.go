// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfx"
)

// Values are encoded as producerID<<32 | sequence.
const seqBits = 32

func encode(producer, seq int) uint64 {
	return uint64(producer)<<seqBits | uint64(seq)
}

func decode(v uint64) (producer, seq int) {
	return int(v >> seqBits), int(v & (1<<seqBits - 1))
}

// =============================================================================
// Multi-Producer
// =============================================================================

// TestFIFOMultiProducer pushes disjoint value sets from several producers,
// then drains on one goroutine. The drained sequence must be exactly the
// union of pushed values with every producer's order preserved.
func TestFIFOMultiProducer(t *testing.T) {
	if lfx.RaceEnabled {
		t.Skip("skip: node recycling synchronizes through atomix")
	}

	const producers = 8
	const perProducer = 20000

	q := lfx.NewFIFO[uint64]()
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := range producers {
		go func(id int) {
			defer wg.Done()
			for i := range perProducer {
				q.Push(encode(id, i))
			}
		}(p)
	}
	wg.Wait()

	next := make([]int, producers)
	for n := 0; ; n++ {
		v, ok := q.Pop()
		if !ok {
			if n != producers*perProducer {
				t.Fatalf("drained %d values, want %d", n, producers*perProducer)
			}
			break
		}
		p, seq := decode(v)
		if p >= producers {
			t.Fatalf("value %#x: unknown producer %d", v, p)
		}
		if seq != next[p] {
			t.Fatalf("producer %d: got seq %d, want %d", p, seq, next[p])
		}
		next[p]++
	}
}

// =============================================================================
// Multi-Producer Multi-Consumer
// =============================================================================

// TestFIFOConcurrentExactlyOnce runs producers and consumers together. Every
// pushed value must be popped exactly once, and each consumer must observe
// every producer's values in increasing order.
func TestFIFOConcurrentExactlyOnce(t *testing.T) {
	if lfx.RaceEnabled {
		t.Skip("skip: node recycling synchronizes through atomix")
	}

	for _, recycle := range []int{0, 16, lfx.DefaultRecycle} {
		runExactlyOnce(t, lfx.BuildFIFO[uint64](lfx.New().Recycle(recycle)), 4, 4, 20000)
	}
}

func runExactlyOnce(t *testing.T, q *lfx.FIFO[uint64], producers, consumers, perProducer int) {
	t.Helper()
	total := producers * perProducer
	seen := make([]atomix.Int32, total)
	var consumed atomix.Int64
	var timedOut atomix.Bool
	var wg sync.WaitGroup

	for p := range producers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range perProducer {
				q.Push(encode(id, i))
			}
		}(p)
	}

	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := make([]int, producers)
			for i := range last {
				last[i] = -1
			}
			deadline := time.Now().Add(30 * time.Second)
			backoff := iox.Backoff{}
			for consumed.Load() < int64(total) {
				v, ok := q.Pop()
				if !ok {
					if time.Now().After(deadline) {
						timedOut.Store(true)
						return
					}
					backoff.Wait()
					continue
				}
				backoff.Reset()
				p, seq := decode(v)
				if p >= producers || seq >= perProducer {
					t.Errorf("value out of range: %#x", v)
					consumed.Add(1)
					continue
				}
				if seq <= last[p] {
					t.Errorf("producer %d: seq %d after %d", p, seq, last[p])
				}
				last[p] = seq
				seen[p*perProducer+seq].Add(1)
				consumed.Add(1)
			}
		}()
	}

	wg.Wait()
	if timedOut.Load() {
		t.Fatalf("timeout: consumed %d/%d", consumed.Load(), total)
	}

	var missing, duplicates int
	for i := range total {
		switch c := seen[i].Load(); {
		case c == 0:
			missing++
		case c > 1:
			duplicates++
		}
	}
	if missing > 0 || duplicates > 0 {
		t.Fatalf("missing=%d duplicates=%d", missing, duplicates)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("queue not empty after all values consumed")
	}
}

// TestFIFOPingPong alternates push and pop on every goroutine so that the
// queue hovers around empty, where tail lags head most often.
func TestFIFOPingPong(t *testing.T) {
	if lfx.RaceEnabled {
		t.Skip("skip: node recycling synchronizes through atomix")
	}

	const workers = 8
	const rounds = 50000

	q := lfx.BuildFIFO[int](lfx.New().Recycle(8))
	var popped atomix.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func(id int) {
			defer wg.Done()
			for i := range rounds {
				q.Push(id*rounds + i)
				if _, ok := q.Pop(); ok {
					popped.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	// Every pop that missed left exactly one value behind.
	left := 0
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		left++
	}
	if got := int(popped.Load()) + left; got != workers*rounds {
		t.Fatalf("popped %d + left %d = %d, want %d", popped.Load(), left, got, workers*rounds)
	}
	if !q.Empty() {
		t.Fatal("queue not empty after drain")
	}
}
