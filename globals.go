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

	"github.com/jacobsa/syncutil"
)

// mainLatch guards refcounts, RPC-tracking lists, inhibition flags, and
// notification allocation bookkeeping across the whole process (spec.md
// §5). It is a single coarse mutex, not one latch per object: critical
// sections under it are short (pointer manipulation, flag toggles), and a
// single latch is what lets begin_rpc/end_rpc update the global, bucket,
// class, and port counters atomically together.
//
// It is an InvariantMutex (github.com/jacobsa/syncutil, also used for the
// per-inode locks in the teacher's samples/memfs) so that
// checkMainInvariants runs on every unlock in debug builds. That check
// only verifies that globalRPCsInFlight is not negative; the per-scope
// counters are not compared against the active-RPC lists.
var mainLatch syncutil.InvariantMutex
var mainCond *sync.Cond

// indicesLatch is the reader/writer latch guarding the global index and
// every bucket's index together (spec.md §4.1, §5): insertion, removal,
// reallocation, and transfer all move both indices in lockstep under its
// writer side, so lookups under its reader side never observe the two
// indices disagreeing.
var indicesLatch sync.RWMutex

// globalIndex maps every live port's name to the port, across the entire
// process (spec.md §3.1).
var globalIndex = make(map[PortName]*Port)

// globalRPCsInFlight mirrors spec.md §8's top-level counter. GUARDED_BY(mainLatch).
var globalRPCsInFlight int

// globalInhibited/globalInhibitWait gate begin_rpc process-wide (spec.md
// §4.7's "global" scope). GUARDED_BY(mainLatch).
var globalInhibited bool
var globalInhibitWait bool

// globalBlocked is the process-wide Blocked flag of spec.md §3.1/§4.7
// step 2: set by anyInhibitedLocked when a begin_rpc call is about to
// wait on the global scope, cleared once admission proceeds.
// GUARDED_BY(mainLatch).
var globalBlocked bool

func checkMainInvariants() {
	if globalRPCsInFlight < 0 {
		panic("globalRPCsInFlight went negative")
	}
}

func init() {
	mainLatch = syncutil.NewInvariantMutex(checkMainInvariants)
	mainCond = sync.NewCond(&mainLatch)
}
