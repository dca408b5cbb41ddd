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

import "context"

// InhibitPortRPCs blocks new RPC admittance on p (except messages in
// p's class's uninhibitable ranges), cancels every RPC currently in
// flight on p except caller (so an inhibit can be issued from inside an
// RPC handler, spec.md §5), and waits for the rest to drain before
// returning. Returns BusyErr if p is already inhibited.
func InhibitPortRPCs(ctx context.Context, p *Port, caller *RPCTracker) error {
	mainLatch.Lock()
	if p.bits&flagInhibited != 0 {
		mainLatch.Unlock()
		return BusyErr
	}
	p.bits |= flagInhibited
	mainLatch.Unlock()

	InterruptPortRPCs(p, caller)

	return waitForDrain(ctx,
		func() int { return inFlightExcludingLocked(p, caller) },
		func(v bool) { setFlagLocked(&p.bits, flagInhibitWait, v) })
}

// ResumePortRPCs clears p's inhibition and wakes blocked begin_rpc
// callers.
func ResumePortRPCs(p *Port) {
	mainLatch.Lock()
	p.bits &^= flagInhibited
	mainLatch.Unlock()
	mainCond.Broadcast()
}

// InhibitClassRPCs is InhibitPortRPCs generalized to every port in class.
func InhibitClassRPCs(ctx context.Context, class *Class, caller *RPCTracker) error {
	mainLatch.Lock()
	if class.inhibited {
		mainLatch.Unlock()
		return BusyErr
	}
	class.inhibited = true
	mainLatch.Unlock()

	ports := snapshotClass(class)
	for _, p := range ports {
		InterruptPortRPCs(p, caller)
		p.deref()
	}

	return waitForDrain(ctx,
		func() int {
			return class.rpcsInFlight - callerCount(caller, func(p *Port) bool { return p.class == class })
		},
		func(v bool) { class.inhibitWait = v })
}

// ResumeClassRPCs clears class's inhibition and wakes blocked begin_rpc
// callers.
func ResumeClassRPCs(class *Class) {
	mainLatch.Lock()
	class.inhibited = false
	mainLatch.Unlock()
	mainCond.Broadcast()
}

// InhibitBucketRPCs is InhibitPortRPCs generalized to every port in
// bucket.
func InhibitBucketRPCs(ctx context.Context, bucket *Bucket, caller *RPCTracker) error {
	mainLatch.Lock()
	if bucket.inhibited {
		mainLatch.Unlock()
		return BusyErr
	}
	bucket.inhibited = true
	mainLatch.Unlock()

	bucket.Iterate(func(p *Port) {
		InterruptPortRPCs(p, caller)
	})

	return waitForDrain(ctx,
		func() int {
			return bucket.rpcsInFlight - callerCount(caller, func(p *Port) bool { return p.bucket == bucket })
		},
		func(v bool) { bucket.inhibitWait = v })
}

// ResumeBucketRPCs clears bucket's inhibition and wakes blocked
// begin_rpc callers.
func ResumeBucketRPCs(bucket *Bucket) {
	mainLatch.Lock()
	bucket.inhibited = false
	mainLatch.Unlock()
	mainCond.Broadcast()
}

// InhibitAllRPCs is InhibitPortRPCs generalized to every port in the
// process.
func InhibitAllRPCs(ctx context.Context, caller *RPCTracker) error {
	mainLatch.Lock()
	if globalInhibited {
		mainLatch.Unlock()
		return BusyErr
	}
	globalInhibited = true
	mainLatch.Unlock()

	ports := snapshotAll()
	for _, p := range ports {
		InterruptPortRPCs(p, caller)
		p.deref()
	}

	return waitForDrain(ctx,
		func() int { return globalRPCsInFlight - callerCount(caller, func(*Port) bool { return true }) },
		func(v bool) { globalInhibitWait = v })
}

// ResumeAllRPCs clears the process-wide inhibition and wakes blocked
// begin_rpc callers.
func ResumeAllRPCs() {
	mainLatch.Lock()
	globalInhibited = false
	mainLatch.Unlock()
	mainCond.Broadcast()
}

// inFlightExcludingLocked reports the number of RPCs in flight on p, not
// counting caller itself (so a handler invoking InhibitPortRPCs on its
// own port doesn't wait on itself forever). Caller must hold mainLatch.
func inFlightExcludingLocked(p *Port, caller *RPCTracker) int {
	n := 0
	for t := p.activeHead; t != nil; t = t.next {
		if t != caller {
			n++
		}
	}
	return n
}

// callerCount is 1 when caller is a live RPC on a port inside the scope
// being drained (and so counted in that scope's in-flight total), else 0.
func callerCount(caller *RPCTracker, inScope func(p *Port) bool) int {
	if caller != nil && inScope(caller.port) {
		return 1
	}
	return 0
}

func setFlagLocked(bits *flags, bit flags, v bool) {
	if v {
		*bits |= bit
	} else {
		*bits &^= bit
	}
}

// waitForDrain blocks on the global condvar, with the scope's
// InhibitWait flag set via setWaitLocked, until countLocked reaches zero
// or ctx is cancelled. Both callbacks are invoked with mainLatch held by
// waitForDrain itself; they must not take the lock themselves.
func waitForDrain(ctx context.Context, countLocked func() int, setWaitLocked func(bool)) error {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			mainLatch.Lock()
			mainCond.Broadcast()
			mainLatch.Unlock()
		})
		defer stop()
	}

	mainLatch.Lock()
	defer mainLatch.Unlock()

	if countLocked() == 0 {
		return nil
	}

	setWaitLocked(true)
	defer setWaitLocked(false)

	for countLocked() > 0 {
		if ctx.Err() != nil {
			return InterruptedErr
		}
		mainCond.Wait()
	}
	return nil
}
