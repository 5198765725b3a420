// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfx

import "code.hybscloud.com/atomix"

// Ref is a lease on a value stored in a Table, returned by Table.Mod.
//
// A Ref stays usable until the table is structurally modified. Put may
// relocate values between buckets or reallocate the tables, so any Put,
// Reset, Swap or CopyFrom ends the lease. Ptr panics on a stale Ref rather
// than returning an address that now belongs to another key.
//
// The zero Ref is stale.
type Ref[V any] struct {
	ptr  *V
	gen  *atomix.Uint64
	seen uint64
}

// Valid reports whether the lease is still current.
func (r Ref[V]) Valid() bool {
	return r.gen != nil && r.gen.LoadAcquire() == r.seen
}

// Ptr returns the address of the stored value.
// Panics if the table was structurally modified since Mod returned r.
func (r Ref[V]) Ptr() *V {
	if !r.Valid() {
		panic("lfx: stale table reference")
	}
	return r.ptr
}
