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

// ReallocatePort discards p's current receive right (if any) and
// installs a fresh one from the kernel at the same identity: same class,
// bucket, and UserData, but cancel_threshold and mscount reset to zero.
// If p had HasSendRights set, that reference is dropped, since the old
// right's send rights no longer exist once the right itself is gone
// (spec.md §4.5).
func (p *Port) ReallocatePort() error {
	right, err := p.kernel.AllocateReceiveRight()
	if err != nil {
		return newErr("ReallocatePort", OutOfMemory, err)
	}
	return p.installNewRight(right, false, 0)
}

// ReallocateFromExternal is like ReallocatePort, but adopts new_receive
// along with its current send-rights/make-send-count status rather than
// resetting them (spec.md §4.5).
func (p *Port) ReallocateFromExternal(right ReceiveRight) error {
	status, err := p.kernel.Status(right)
	if err != nil {
		return newErr("ReallocateFromExternal", ExternalIPC, err)
	}
	return p.installNewRight(right, status.HasSendRights, status.MakeSendCount)
}

// installNewRight is the shared tail of ReallocatePort and
// ReallocateFromExternal: drop whatever right p currently holds, adopt
// the new one, reset cancel_threshold/mscount, re-link both indices
// under the writer latch, and set the protected payload to p itself.
func (p *Port) installNewRight(right ReceiveRight, hasSendRights bool, mscount uint32) error {
	indicesLatch.Lock()
	oldRight := p.portRight
	wasInstalled := oldRight != nil && oldRight.Valid()
	if wasInstalled {
		removeIndicesLocked(p)
	}

	p.portRight = right
	p.indexedName = right.Name()
	insertIndicesLocked(p)
	indicesLatch.Unlock()

	if !wasInstalled {
		p.class.incPortCount()
	}

	atomic.StoreUint64(&p.cancelThreshold, 0)

	mainLatch.Lock()
	p.mscount = mscount
	hadSendRights := p.hasSendRightsLocked()
	p.setHasSendRightsLocked(hasSendRights)
	mainLatch.Unlock()

	if wasInstalled {
		p.kernel.DestroyReceiveRight(oldRight)
	}

	switch {
	case hadSendRights && !hasSendRights:
		p.deref()
	case !hadSendRights && hasSendRights:
		p.ref()
	}

	return nil
}

// TransferRight moves the receive right from "from" to "to", destroying
// any pre-existing right already on "to". cancel_threshold and mscount
// move with the right; each object's hard refcount is adjusted to
// reflect whether it had send-rights before/after the move (spec.md
// §4.5).
func TransferRight(to, from *Port) error {
	indicesLatch.Lock()
	fromRight := from.portRight
	if fromRight == nil || !fromRight.Valid() {
		indicesLatch.Unlock()
		return NotSupportedErr
	}

	toRight := to.portRight
	toWasInstalled := toRight != nil && toRight.Valid()
	if toWasInstalled {
		removeIndicesLocked(to)
	}
	removeIndicesLocked(from)

	to.portRight = fromRight
	to.indexedName = fromRight.Name()
	from.portRight = Dead

	insertIndicesLocked(to)
	indicesLatch.Unlock()

	if !toWasInstalled {
		to.class.incPortCount()
	}
	from.class.decPortCount()

	if toWasInstalled {
		to.kernel.DestroyReceiveRight(toRight)
	}

	threshold := atomic.LoadUint64(&from.cancelThreshold)
	atomic.StoreUint64(&to.cancelThreshold, threshold)
	atomic.StoreUint64(&from.cancelThreshold, 0)

	mainLatch.Lock()
	mscount := from.mscount
	fromHadSendRights := from.hasSendRightsLocked()
	toHadSendRights := to.hasSendRightsLocked()

	to.mscount = mscount
	to.setHasSendRightsLocked(fromHadSendRights)
	from.setHasSendRightsLocked(false)
	mainLatch.Unlock()

	if toHadSendRights && !fromHadSendRights {
		to.deref()
	} else if !toHadSendRights && fromHadSendRights {
		to.ref()
	}
	if fromHadSendRights {
		from.deref()
	}

	return nil
}
