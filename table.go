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

// Lookup resolves an incoming message's target to its Port, bumping the
// port's hard refcount on success (spec.md §4.1). Payload targets are the
// hot path: a pointer coercion plus a liveness and class/bucket filter
// check, with no hashing involved. Name targets fall back to the global
// hash index.
//
// class and bucket are optional filters: if non-nil, Lookup returns
// BadHandleErr unless the resolved port belongs to that class and/or
// bucket. This matches the kernel's own dispatch loop, which only wants
// messages for the bucket it's serving and, in many translators, only
// for one class at a time.
func Lookup(target MsgTarget, class *Class, bucket *Bucket) (*Port, error) {
	if target.HasPayload() {
		return lookupPayload(target.payload, class, bucket)
	}
	return lookupName(target.name, class, bucket)
}

func lookupPayload(p *Port, class *Class, bucket *Bucket) (*Port, error) {
	indicesLatch.RLock()
	if !p.portRight.Valid() {
		indicesLatch.RUnlock()
		return nil, BadHandleErr
	}
	if !matchesFilters(p, class, bucket) {
		indicesLatch.RUnlock()
		return nil, BadHandleErr
	}
	p.unsafeRef()
	indicesLatch.RUnlock()
	return p, nil
}

func lookupName(name PortName, class *Class, bucket *Bucket) (*Port, error) {
	indicesLatch.RLock()
	p, ok := globalIndex[name]
	if !ok || !p.portRight.Valid() {
		indicesLatch.RUnlock()
		return nil, BadHandleErr
	}
	if !matchesFilters(p, class, bucket) {
		indicesLatch.RUnlock()
		return nil, BadHandleErr
	}
	p.unsafeRef()
	indicesLatch.RUnlock()
	return p, nil
}

func matchesFilters(p *Port, class *Class, bucket *Bucket) bool {
	if class != nil && p.class != class {
		return false
	}
	if bucket != nil && p.bucket != bucket {
		return false
	}
	return true
}

// insertIndicesLocked adds p to the global index and its bucket's index,
// and marks its payload as protected by p itself. Caller must hold
// indicesLatch for writing, and p.indexedName/p.portRight must already be
// set.
func insertIndicesLocked(p *Port) {
	globalIndex[p.indexedName] = p
	p.bucket.insertLocked(p)
	if p.portRight != nil {
		p.portRight.SetProtectedPayload(p)
	}
}

// removeIndicesLocked removes p from the global index and its bucket's
// index. Caller must hold indicesLatch for writing.
func removeIndicesLocked(p *Port) {
	delete(globalIndex, p.indexedName)
	p.bucket.removeLocked(p)
}

// snapshotClass returns every currently-live port in class, each with a
// hard reference held across the caller's use of the slice (the caller
// must deref each one when done). Used by the class-scoped inhibit
// operations, which have no dedicated per-class port list (only a
// count) and so fall back to filtering the global index, the same way
// Bucket.Iterate does for bucket scope.
func snapshotClass(class *Class) []*Port {
	indicesLatch.RLock()
	defer indicesLatch.RUnlock()

	ports := make([]*Port, 0, class.PortCount())
	for _, p := range globalIndex {
		if p.class == class {
			p.ref()
			ports = append(ports, p)
		}
	}
	return ports
}

// snapshotAll returns every currently-live port in the process, each
// with a hard reference held across the caller's use of the slice.
func snapshotAll() []*Port {
	indicesLatch.RLock()
	defer indicesLatch.RUnlock()

	ports := make([]*Port, 0, len(globalIndex))
	for _, p := range globalIndex {
		p.ref()
		ports = append(ports, p)
	}
	return ports
}
