// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hazard implements hazard pointers for deferred node reclamation.
//
// A goroutine acquires a [Guard] before touching shared nodes, publishes
// every node it is about to dereference with [Guard.Set], and hands nodes
// it has unlinked to [Guard.Retire]. A retired node reaches the domain's
// reclaim function only after a scan observes that no guard publishes it.
//
// The garbage collector already keeps unreachable-but-referenced memory
// alive, so reclamation here means reuse: the reclaim function is where a
// node becomes eligible to be handed out again. Reusing a node that a
// concurrent reader still holds would break the CAS choreography of the
// structure that owns it (ABA); the domain makes that impossible.
package hazard
