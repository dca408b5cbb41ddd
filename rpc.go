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
	"context"
	"strconv"
	"sync/atomic"

	"github.com/jacobsa/reqtrace"
)

// RPCTracker wraps one admitted RPC: the port it targets, the message ID
// and sequence number it arrived with, a cancellation function the
// runtime uses in place of the spec's "thread interrupt" (spec.md §4.7,
// §4.9), and the list of notification subscriptions it is attached to
// (spec.md §4.8).
type RPCTracker struct {
	port  *Port
	msgID MessageID
	seqNo SeqNo

	rpcCtx    context.Context
	ctxCancel context.CancelFunc
	report    reqtrace.ReportFunc

	// interrupted records a cancellation distinctly from ctxCancel's
	// context, which stays Done forever once fired: SelfInterrupted
	// consumes this flag (spec.md §5 "self_interrupted returns, and
	// clears, whether the calling thread's RPC was cancelled"), so a
	// handler can tell "was I just interrupted" from "was I ever
	// interrupted, arbitrarily long ago."
	interrupted int32 // atomic

	// links is GUARDED_BY(mainLatch), appended to by InterruptRPCOnNotification
	// and walked by notification delivery.
	links []*NotifyLink

	// prev/next thread p.activeHead/activeTail's doubly-linked list.
	// GUARDED_BY(mainLatch).
	prev, next *RPCTracker
}

// cancel interrupts t: it marks the interrupted flag (consumed once by
// SelfInterrupted) and cancels t's context, unblocking any
// context-aware operation the handler is waiting on.
func (t *RPCTracker) cancel() {
	atomic.StoreInt32(&t.interrupted, 1)
	t.ctxCancel()
}

// SelfInterrupted reports whether t has been cancelled since the last
// call to SelfInterrupted, clearing the flag as it reports it (spec.md
// §5).
func (t *RPCTracker) SelfInterrupted() bool {
	return atomic.SwapInt32(&t.interrupted, 0) == 1
}

// Context returns the RPC's context, Done once t is cancelled by an
// inhibit request, a no-senders delivery, or interrupt_operation.
func (t *RPCTracker) Context() context.Context { return t.rpcCtx }

// Port returns the port this RPC was admitted against.
func (t *RPCTracker) Port() *Port { return t.port }

// SeqNo returns the RPC's sequence number, used by interrupt_operation
// (spec.md §4.9) and by BeginRPC's cancel-threshold check.
func (t *RPCTracker) SeqNo() SeqNo { return t.seqNo }

// BeginRPC admits an RPC against port for message msgID/seqNo, blocking
// on the four-scope inhibition ladder (global, bucket, class, port) until
// all clear or ctx is cancelled (spec.md §4.7). On success it returns a
// tracker that must later be passed to EndRPC exactly once.
//
// If the port's cancel_threshold already exceeds seqNo (spec.md §4.9),
// the returned tracker's context is pre-cancelled; admittance itself
// still succeeds, matching the spec's "cancels the RPC's thread without
// failing begin_rpc."
func BeginRPC(ctx context.Context, p *Port, msgID MessageID, seqNo SeqNo) (*RPCTracker, error) {
	if p.Dead() {
		return nil, NotSupportedErr
	}

	rpcCtx, ctxCancel := context.WithCancel(ctx)
	tracedCtx, report := reqtrace.StartSpan(rpcCtx, "message "+strconv.FormatUint(uint64(msgID), 10))
	t := &RPCTracker{port: p, msgID: msgID, seqNo: seqNo, rpcCtx: tracedCtx, ctxCancel: ctxCancel, report: report}

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			mainLatch.Lock()
			mainCond.Broadcast()
			mainLatch.Unlock()
		})
		defer stop()
	}

	mainLatch.Lock()
	for {
		if p.Dead() {
			mainLatch.Unlock()
			ctxCancel()
			return nil, NotSupportedErr
		}

		if !anyInhibitedLocked(p, msgID) {
			break
		}

		if ctx.Err() != nil {
			mainLatch.Unlock()
			ctxCancel()
			return nil, InterruptedErr
		}
		mainCond.Wait()
	}

	admitLocked(p, t)
	mainLatch.Unlock()

	if threshold := p.CancelThreshold(); threshold > 0 && seqNo < threshold {
		t.cancel()
	}

	return t, nil
}

// anyInhibitedLocked reports whether any of the four scopes (global,
// bucket, class, port) currently blocks msgID, checked in that order as
// original_source/libports/begin-rpc.c does. If so, it marks the single
// blocking scope's Blocked flag (spec.md §4.7 step 2: "set the scope's
// Blocked flag and wait on the global condvar") before returning; the
// flag is cleared again once admitLocked runs. Caller must hold
// mainLatch.
func anyInhibitedLocked(p *Port, msgID MessageID) bool {
	if (globalInhibited || globalInhibitWait) && !p.class.uninhibitableLocked(msgID) {
		globalBlocked = true
		return true
	}
	if (p.bucket.inhibited || p.bucket.inhibitWait) && !p.class.uninhibitableLocked(msgID) {
		p.bucket.blocked = true
		return true
	}
	if (p.class.inhibited || p.class.inhibitWait) && !p.class.uninhibitableLocked(msgID) {
		p.class.blocked = true
		return true
	}
	if (p.bits&flagInhibited != 0 || p.bits&flagInhibitWait != 0) && !p.class.uninhibitableLocked(msgID) {
		p.bits |= flagBlocked
		return true
	}
	return false
}

// admitLocked links t into p's active-RPC list, bumps the four in-flight
// counters, and clears every scope's Blocked flag: t's admission means
// anyInhibitedLocked found nothing currently blocking it, so no scope
// has a waiter stuck behind it any more. Caller must hold mainLatch.
func admitLocked(p *Port, t *RPCTracker) {
	globalBlocked = false
	p.bucket.blocked = false
	p.class.blocked = false
	p.bits &^= flagBlocked

	t.next = nil
	t.prev = p.activeTail
	if p.activeTail != nil {
		p.activeTail.next = t
	} else {
		p.activeHead = t
	}
	p.activeTail = t

	globalRPCsInFlight++
	p.bucket.rpcsInFlight++
	p.class.rpcsInFlight++
}

// EndRPC retires a tracker previously returned by BeginRPC: it is
// unlinked from its port's active-RPC list and from any notification
// subscriptions it registered, the four in-flight counters are
// decremented, waiters blocked on an InhibitWait scope are woken
// (spec.md §4.7), and the reqtrace span opened by BeginRPC is closed.
// The runtime has no per-RPC success/failure signal at this layer, so
// the span is always reported as successful; a handler that wants
// finer-grained tracing can open its own nested span from t.Context().
func EndRPC(t *RPCTracker) {
	mainLatch.Lock()
	unlinkLocked(t.port, t)

	globalRPCsInFlight--
	t.port.bucket.rpcsInFlight--
	t.port.class.rpcsInFlight--

	shouldBroadcast := globalInhibitWait || t.port.bucket.inhibitWait ||
		t.port.class.inhibitWait || t.port.bits&flagInhibitWait != 0

	links := t.links
	t.links = nil
	mainLatch.Unlock()

	for _, link := range links {
		link.detach(t)
	}

	if shouldBroadcast {
		mainLatch.Lock()
		mainCond.Broadcast()
		mainLatch.Unlock()
	}

	t.report(nil)
	t.cancel()
}

// unlinkLocked removes t from p's active-RPC doubly-linked list. Caller
// must hold mainLatch.
func unlinkLocked(p *Port, t *RPCTracker) {
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		p.activeHead = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		p.activeTail = t.prev
	}
	t.prev, t.next = nil, nil
}

// cancelAllLocked cancels every RPC currently active on p, optionally
// skipping one tracker (used by inhibit requests, spec.md §5 "an inhibit
// request cancels all in-flight RPCs on the chosen scope except the
// caller's own"). Caller must hold mainLatch; the cancel funcs themselves
// are safe to call with the lock held since context cancellation never
// blocks.
func cancelAllLocked(p *Port, except *RPCTracker) {
	for t := p.activeHead; t != nil; t = t.next {
		if t == except {
			continue
		}
		t.cancel()
	}
}
