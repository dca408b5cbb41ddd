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

// Refcount discipline (spec.md §4.3). A port's receive right is cleaned
// up (removed from the indices, class.Clean invoked) the first time hard
// reaches zero, regardless of weak; the port itself is only finalized
// once both hard and weak have reached zero (spec.md §3.2).

// ref bumps the hard refcount unconditionally.
func (p *Port) ref() {
	mainLatch.Lock()
	p.hard++
	mainLatch.Unlock()
}

// unsafeRef is documented by spec.md §4.1/§4.3 as a lock-free increment
// available to callers already holding the indices reader latch, safe
// because that latch excludes the writer that would free the port. Go
// offers no comparably cheap unsynchronized-increment primitive without
// also racing the separately-guarded hard/weak pair, and mainLatch's
// critical sections here are short enough that the distinction isn't
// worth the risk; this implementation takes the lock like Ref. Callers
// must still hold the indices reader latch, per the documented contract,
// so the port cannot be concurrently removed from the index under them.
func (p *Port) unsafeRef() {
	p.ref()
}

// refWeak bumps the weak refcount unconditionally.
func (p *Port) refWeak() {
	mainLatch.Lock()
	p.weak++
	mainLatch.Unlock()
}

// deref drops one hard reference. If it reaches zero while weak is still
// positive and the class declared a weak-drop callback, the callback runs
// with mainLatch dropped (it is expected to clear weak references via
// derefWeak), and the decrement path is re-evaluated once more before
// concluding whether the port is now fully unreachable.
func (p *Port) deref() {
	mainLatch.Lock()
	if p.hard <= 0 {
		mainLatch.Unlock()
		panic("ports: deref of port with hard refcount already zero")
	}
	p.hard--

	triedWeakDrop := false
	for p.hard == 0 && p.weak > 0 && p.class.DropWeak != nil && !triedWeakDrop {
		triedWeakDrop = true
		mainLatch.Unlock()
		p.class.DropWeak(p)
		mainLatch.Lock()
	}

	doClean := p.hard == 0 && !p.cleaned
	if doClean {
		p.cleaned = true
	}
	doFree := p.maybeMarkFreedLocked()
	mainLatch.Unlock()

	if doClean {
		p.cleanupRight()
	}
	if doFree {
		p.finalize()
	}
}

// derefWeak drops one weak reference.
func (p *Port) derefWeak() {
	mainLatch.Lock()
	if p.weak <= 0 {
		mainLatch.Unlock()
		panic("ports: derefWeak of port with weak refcount already zero")
	}
	p.weak--

	doFree := p.maybeMarkFreedLocked()
	mainLatch.Unlock()

	if doFree {
		p.finalize()
	}
}

// demote atomically trades one hard reference for one weak reference.
func (p *Port) demote() {
	mainLatch.Lock()
	if p.hard <= 0 {
		mainLatch.Unlock()
		panic("ports: demote of port with hard refcount already zero")
	}
	p.hard--
	p.weak++

	doClean := p.hard == 0 && !p.cleaned
	if doClean {
		p.cleaned = true
	}
	mainLatch.Unlock()

	if doClean {
		p.cleanupRight()
	}
}

// maybeMarkFreedLocked reports whether the caller is the one that should
// run finalize: true exactly once, the first time hard and weak are both
// observed at zero. Caller must hold mainLatch.
func (p *Port) maybeMarkFreedLocked() bool {
	if p.hard != 0 || p.weak != 0 || p.freed {
		return false
	}
	p.freed = true
	return true
}
