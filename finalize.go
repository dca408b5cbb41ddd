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

// cleanupRight runs the first of the two finalization transitions
// described by spec.md §3.2: once a port's hard refcount has reached
// zero, its receive right (if still present) is pulled out of the
// global and bucket indices and destroyed, and the class's clean
// routine runs with no library lock held. This can happen long before
// the port's weak refcount also reaches zero; the port struct itself
// stays alive as long as any weak reference remains, since DropWeak
// callbacks and diagnostic calls may still dereference it.
func (p *Port) cleanupRight() {
	indicesLatch.Lock()
	right := p.portRight
	wasInstalled := right != nil && right.Valid()
	if wasInstalled {
		removeIndicesLocked(p)
	}
	p.portRight = Dead
	indicesLatch.Unlock()

	if wasInstalled {
		p.class.decPortCount()
	}

	if wasInstalled {
		p.kernel.DestroyReceiveRight(right)
	}

	if p.class.Clean != nil {
		p.class.Clean(p)
	}
}

// finalize runs the second transition: both hard and weak have reached
// zero and the port is completely unreachable. There is no manual
// storage to release (the Go runtime reclaims the struct once the last
// reference to it drops), but any attached UserData is cleared so it
// doesn't outlive the port through a stray pointer, and so its own
// finalizers (if any) can run promptly rather than waiting on the GC to
// notice the Port itself is garbage.
func (p *Port) finalize() {
	p.UserData = nil
}
