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

import (
	"sync"

	"github.com/hurd-go/ports/internal/freelist"
)

// notifyKey identifies a (port name, notification kind) pair: the unit a
// kernel notification request is armed against (spec.md §4.8).
type notifyKey struct {
	name PortName
	kind NotifyKind
}

// NotifySubscription is the graph node an RPC attaches to when it asks
// to be cancelled on a notification for a given (port, kind) pair. One
// subscription is shared by every RPC currently watching the same pair;
// it stays alive exactly as long as its reqs list is non-empty.
type NotifySubscription struct {
	key notifyKey

	armMu sync.Mutex // spec.md §5: "per-NotifySubscription mutex, taken only around kernel notification re-arm"
	armed bool

	reqs []*NotifyLink // GUARDED_BY(mainLatch)
}

// NotifyLink attaches one RPCTracker to one NotifySubscription.
type NotifyLink struct {
	sub     *NotifySubscription
	tracker *RPCTracker
	pending int // GUARDED_BY(mainLatch)
}

var notifySubs = make(map[notifyKey]*NotifySubscription) // GUARDED_BY(mainLatch)

// subPool and linkPool are GUARDED_BY(mainLatch): every Get/Put below
// happens while the caller already holds it for the surrounding list
// surgery, so the pools need no lock of their own (see
// internal/freelist).
var subPool freelist.List
var linkPool freelist.List

func newSubscription() *NotifySubscription {
	return subPool.Get(func() interface{} { return &NotifySubscription{} }).(*NotifySubscription)
}

func newLink() *NotifyLink {
	return linkPool.Get(func() interface{} { return &NotifyLink{} }).(*NotifyLink)
}

// InterruptRPCOnNotification registers t's interest in the given
// notification kind firing on name: "if K fires on P, cancel my RPC"
// (spec.md §4.8). If name is already Invalid, t is cancelled immediately
// and no subscription is created.
//
// arm is called (with the subscription's arm latch held, not mainLatch)
// the first time a subscription is created for this (name, kind) pair; it
// is expected to call the appropriate Kernel.RequestXNotification.
func InterruptRPCOnNotification(t *RPCTracker, name PortName, kind NotifyKind, arm func() error) error {
	if name == Invalid {
		t.cancel()
		return nil
	}

	key := notifyKey{name: name, kind: kind}

	mainLatch.Lock()
	sub, ok := notifySubs[key]
	if !ok {
		sub = newSubscription()
		sub.key = key
		sub.armed = false
		sub.reqs = sub.reqs[:0]
		notifySubs[key] = sub
	}

	link := linkForLocked(sub, t)
	link.pending++
	needsArm := !sub.armed
	if needsArm {
		sub.armed = true
	}
	mainLatch.Unlock()

	if needsArm && arm != nil {
		sub.armMu.Lock()
		err := arm()
		sub.armMu.Unlock()
		if err != nil {
			return newErr("InterruptRPCOnNotification", ExternalIPC, err)
		}
	}

	return nil
}

// linkForLocked finds t's existing NotifyLink on sub, or allocates one
// from the pool and appends it. Caller must hold mainLatch.
func linkForLocked(sub *NotifySubscription, t *RPCTracker) *NotifyLink {
	for _, l := range t.links {
		if l.sub == sub {
			return l
		}
	}

	link := newLink()
	link.sub = sub
	link.tracker = t
	link.pending = 0

	sub.reqs = append(sub.reqs, link)
	t.links = append(t.links, link)
	return link
}

// detach removes link from t's tracker bookkeeping and, if the owning
// subscription's reqs list is now empty, drops the subscription from the
// registry, returning both to their pools under mainLatch (the pools are
// unsynchronized; see internal/freelist).
func (link *NotifyLink) detach(t *RPCTracker) {
	mainLatch.Lock()
	sub := link.sub
	removeLinkLocked(sub, link)
	empty := len(sub.reqs) == 0
	if empty {
		delete(notifySubs, sub.key)
	}

	linkPool.Put(link)
	if empty {
		sub.reqs = nil
		sub.armed = false
		subPool.Put(sub)
	}
	mainLatch.Unlock()
}

func removeLinkLocked(sub *NotifySubscription, link *NotifyLink) {
	for i, l := range sub.reqs {
		if l == link {
			sub.reqs[i] = sub.reqs[len(sub.reqs)-1]
			sub.reqs = sub.reqs[:len(sub.reqs)-1]
			return
		}
	}
}

// DeliverNotification fires every pending request subscribed to
// (name, kind): each waiting RPC is cancelled. It is the dispatcher's
// entry point for a notification message whose target is one of the
// library's own receive rights (spec.md §4.8).
func DeliverNotification(name PortName, kind NotifyKind) {
	key := notifyKey{name: name, kind: kind}

	mainLatch.Lock()
	sub, ok := notifySubs[key]
	if !ok {
		mainLatch.Unlock()
		return
	}
	links := append([]*NotifyLink(nil), sub.reqs...)
	mainLatch.Unlock()

	for _, link := range links {
		mainLatch.Lock()
		if link.pending > 0 {
			link.pending--
			link.tracker.cancel()
		}
		mainLatch.Unlock()
	}
}

// DeliverDeadName handles a dead-name notification arriving for name: it
// fires every RPC subscribed to watch for it, then deallocates the extra
// reference the kernel attaches to dead-name deliveries (spec.md §6).
func DeliverDeadName(kernel Kernel, name PortName) {
	DeliverNotification(name, DeadName)
	kernel.DeallocateExtraRef(name)
}
