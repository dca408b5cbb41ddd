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

// GetRight returns p's kernel port name, suitable for minting a send
// right to hand back to a client. Every call bumps mscount; the first
// call since the port was last senderless also sets HasSendRights, bumps
// hard, and arms a no-senders notification with the kernel directed back
// at p's own receive right (spec.md §4.6).
func GetRight(p *Port) (PortName, error) {
	mainLatch.Lock()
	p.mscount++
	needsArm := !p.hasSendRightsLocked()
	if needsArm {
		p.setHasSendRightsLocked(true)
	}
	mscount := p.mscount
	mainLatch.Unlock()

	if needsArm {
		p.ref()
		if err := p.kernel.RequestNoSendersNotification(p.portRightForArm(), mscount); err != nil {
			return Invalid, newErr("GetRight", ExternalIPC, err)
		}
	}

	name := p.Name()
	if name == Invalid {
		return Invalid, NotSupportedErr
	}
	return name, nil
}

// portRightForArm reads p.portRight under the indices reader latch; a
// small helper so GetRight doesn't need to know about indicesLatch
// directly.
func (p *Port) portRightForArm() ReceiveRight {
	indicesLatch.RLock()
	defer indicesLatch.RUnlock()
	return p.portRight
}

// ClaimRight takes p's receive right away from the library, the way
// ports_claim_right does in original_source/libports/claim-right.c: p is
// removed from both the global and bucket indices and from the bucket's
// portset, p.portRight is cleared (p reports Dead afterward, same as a
// destroyed port), and the right itself is returned to the caller, who
// now owns it directly and is responsible for it.
//
// If p currently has HasSendRights set, that flag is cleared and the
// hard reference GetRight's first call took out on behalf of those
// outstanding send rights is decremented here — "by decrementing it in
// the library" (spec.md §8) — rather than left for a no-senders
// notification that will now never arrive, since the right it would have
// arrived on no longer belongs to p.
func ClaimRight(p *Port) (ReceiveRight, error) {
	indicesLatch.Lock()
	right := p.portRight
	if right == nil || !right.Valid() {
		indicesLatch.Unlock()
		return nil, NotSupportedErr
	}
	removeIndicesLocked(p)
	p.portRight = Dead
	indicesLatch.Unlock()

	p.class.decPortCount()

	if err := p.bucket.portset.Remove(right); err != nil {
		return nil, newErr("ClaimRight", ExternalIPC, err)
	}

	mainLatch.Lock()
	hadSendRights := p.hasSendRightsLocked()
	if hadSendRights {
		p.setHasSendRightsLocked(false)
	}
	mainLatch.Unlock()

	if hadSendRights {
		p.deref()
	}

	return right, nil
}

// DeliverNoSenders handles a no-senders notification arriving for p with
// the given make-send count. If no new send rights were handed out since
// the notification was armed (count >= p's current mscount), HasSendRights
// is cleared, every RPC subscribed to NoSenders on p is cancelled, every
// RPC currently in flight on p is cancelled, and the hard reference taken
// by GetRight is dropped. Otherwise the notification is re-armed at the
// current mscount (spec.md §4.6).
func DeliverNoSenders(p *Port, count uint32) error {
	mainLatch.Lock()
	current := p.mscount
	stale := count < current

	if stale {
		mainLatch.Unlock()
		return p.kernel.RequestNoSendersNotification(p.portRightForArm(), current)
	}

	p.setHasSendRightsLocked(false)
	cancelAllLocked(p, nil)
	mainLatch.Unlock()

	DeliverNotification(p.Name(), NoSenders)

	p.deref()
	return nil
}
