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

// The C runtime this package is modeled on keeps a process-wide
// interrupted set keyed by OS thread, because a Mach server thread's
// identity outlives any single RPC and is the only handle available to
// name "the thing to cancel." Here an RPCTracker is allocated fresh by
// BeginRPC for every admitted RPC and is never reused, so it is itself
// the natural, already-unique key: SelfInterrupted (rpc.go) and cancel
// both live directly on *RPCTracker, and no separate keyed set or
// spinlock is needed to find "the current thread's" entry.

// InterruptPortRPCs cancels every RPC currently active on p, except
// caller if non-nil (spec.md §5's inhibit-composition rule: "an inhibit
// request cancels all in-flight RPCs on the chosen scope except the
// caller's own").
func InterruptPortRPCs(p *Port, caller *RPCTracker) {
	mainLatch.Lock()
	cancelAllLocked(p, caller)
	mainLatch.Unlock()
}

// InterruptBucketRPCs cancels every RPC active on any port in bucket,
// except caller if non-nil.
func InterruptBucketRPCs(bucket *Bucket, caller *RPCTracker) {
	bucket.Iterate(func(p *Port) {
		InterruptPortRPCs(p, caller)
	})
}
