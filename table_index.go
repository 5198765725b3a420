// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx

import "hash/maphash"

// index selects which of the two tables a bucket index addresses.
type index uint8

const (
	primary index = iota
	secondary
)

// of returns the bucket index of hash h in a table of size buckets.
// size must be a power of 2.
func (ix index) of(h, size uint64) uint64 {
	switch ix {
	case primary:
		return mix(h) & (size - 1)
	case secondary:
		return mix(mix2(h)) & (size - 1)
	default:
		panic("lfx: unknown index function")
	}
}

// mix is the MurmurHash3 64-bit finalizer.
func mix(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// mix2 is one SplitMix64 step. Its output is independent enough of mix
// that keys colliding in the first table rarely collide in the second.
func mix2(h uint64) uint64 {
	h += 0x9e3779b97f4a7c15
	h = (h ^ (h >> 30)) * 0xbf58476d1ce4e5b9
	h = (h ^ (h >> 27)) * 0x94d049bb133111eb
	return h ^ (h >> 31)
}

// MapHasher returns a hash function for any comparable key type, seeded
// randomly once per call. Tables that are copied with CopyFrom or Swap
// carry their hash function along, so the seed stays consistent.
func MapHasher[K comparable]() func(K) uint64 {
	seed := maphash.MakeSeed()
	return func(k K) uint64 {
		return maphash.Comparable(seed, k)
	}
}
