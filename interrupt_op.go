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

// InterruptOperation handles the distinguished interrupt_operation
// message for port p, arriving with the given sequence number: it
// advances p.cancel_threshold to seqNo (monotonically, via CAS) and
// cancels every RPC currently in flight on p. A dispatcher admitting a
// later RPC whose own sequence number falls below the new threshold
// cancels it immediately rather than failing BeginRPC (spec.md §4.9;
// enforced in BeginRPC itself).
func InterruptOperation(p *Port, seqNo SeqNo) {
	raiseCancelThreshold(p, uint64(seqNo))

	mainLatch.Lock()
	cancelAllLocked(p, nil)
	mainLatch.Unlock()
}

// raiseCancelThreshold CASes p.cancelThreshold up to at least v,
// retrying only while another writer races it to a value still below v.
func raiseCancelThreshold(p *Port, v uint64) {
	for {
		cur := atomic.LoadUint64(&p.cancelThreshold)
		if cur >= v {
			return
		}
		if atomic.CompareAndSwapUint64(&p.cancelThreshold, cur, v) {
			return
		}
	}
}
