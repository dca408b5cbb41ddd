// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ports

import "sync/atomic"

// Port is the core capability object: a reference-counted handle wrapping
// one receive right plus user state, tagged with a class and contained in
// a bucket (spec.md §3.1).
type Port struct {
	class  *Class
	bucket *Bucket
	kernel Kernel

	// portRight/indexedName change together, under indicesLatch's writer
	// side, so a reader holding indicesLatch for reading never observes
	// them out of sync (spec.md §4.1).
	portRight   ReceiveRight // GUARDED_BY(indicesLatch)
	indexedName PortName     // GUARDED_BY(indicesLatch)

	hard, weak int   // GUARDED_BY(mainLatch)
	cleaned    bool  // GUARDED_BY(mainLatch) — true once hard has reached zero and Clean has run
	freed      bool  // GUARDED_BY(mainLatch) — true once the hard=weak=0 transition has fired
	bits       flags // GUARDED_BY(mainLatch)
	mscount    uint32 // GUARDED_BY(mainLatch)

	// cancelThreshold is updated with an atomic CAS independent of
	// mainLatch (spec.md §3.1, §4.9): any RPC whose sequence number is
	// below it must be cancelled immediately.
	cancelThreshold uint64

	activeHead, activeTail *RPCTracker // GUARDED_BY(mainLatch), doubly linked

	// UserData is arbitrary state the owning translator attaches to the
	// port at creation time (e.g. an inode, a protid, a socket).
	UserData interface{}
}

// Class returns the port's class, stable after creation.
func (p *Port) Class() *Class { return p.class }

// Bucket returns the port's bucket, stable after creation.
func (p *Port) Bucket() *Bucket { return p.bucket }

// Name returns the port's current kernel name, or Invalid if the right
// has been destroyed.
func (p *Port) Name() PortName {
	indicesLatch.RLock()
	defer indicesLatch.RUnlock()
	if !p.portRight.Valid() {
		return Invalid
	}
	return p.indexedName
}

// Dead reports whether the port's receive right has been destroyed.
func (p *Port) Dead() bool {
	indicesLatch.RLock()
	defer indicesLatch.RUnlock()
	return !p.portRight.Valid()
}

// CancelThreshold returns the current interrupt-operation cancellation
// threshold (spec.md §4.9).
func (p *Port) CancelThreshold() SeqNo {
	return SeqNo(atomic.LoadUint64(&p.cancelThreshold))
}

// Deref drops a hard reference obtained from Lookup. Every caller of
// Lookup owns exactly one hard reference on success and must eventually
// Deref it.
func (p *Port) Deref() {
	p.deref()
}

// HardRefs and WeakRefs expose the current refcount pair for diagnostics
// and tests; callers must not rely on them for correctness decisions
// outside mainLatch, since they can change the instant the lock is
// released.
func (p *Port) HardRefs() int {
	mainLatch.Lock()
	defer mainLatch.Unlock()
	return p.hard
}

func (p *Port) WeakRefs() int {
	mainLatch.Lock()
	defer mainLatch.Unlock()
	return p.weak
}

func (p *Port) hasSendRightsLocked() bool {
	return p.bits&flagHasSendRights != 0
}

func (p *Port) setHasSendRightsLocked(v bool) {
	if v {
		p.bits |= flagHasSendRights
	} else {
		p.bits &^= flagHasSendRights
	}
}
