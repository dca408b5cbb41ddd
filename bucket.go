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

// Bucket groups ports sharing a polling set, a per-bucket index, and a
// threadpool generation state (spec.md §3.1). The index itself is guarded
// by indicesLatch (shared with the global index, spec.md §4.1); the
// counters and inhibition flags are guarded by mainLatch, same as Class
// and Port, so begin_rpc/end_rpc can update all four scopes together.
type Bucket struct {
	Name string

	portset Portset

	index map[PortName]*Port // GUARDED_BY(indicesLatch)

	rpcsInFlight int  // GUARDED_BY(mainLatch)
	inhibited    bool // GUARDED_BY(mainLatch)
	inhibitWait  bool // GUARDED_BY(mainLatch)
	blocked      bool // GUARDED_BY(mainLatch), spec.md §3.1/§4.7 step 2
	portCount    int  // GUARDED_BY(indicesLatch)

	noAlloc bool // GUARDED_BY(mainLatch)

	threadpool *threadpool
}

// SetNoAlloc controls whether CreatePort/ImportPort calls naming this
// bucket block on the global condition variable instead of proceeding
// (spec.md §4.2).
func (b *Bucket) SetNoAlloc(v bool) {
	mainLatch.Lock()
	b.noAlloc = v
	mainLatch.Unlock()
	if !v {
		mainCond.Broadcast()
	}
}

// NewBucket creates a bucket backed by the given portset (the kernel's
// polling-set collaborator; see Kernel/Portset in kernel.go).
func NewBucket(name string, ps Portset) *Bucket {
	return &Bucket{
		Name:       name,
		portset:    ps,
		index:      make(map[PortName]*Port),
		threadpool: newThreadpool(),
	}
}

// Iterate calls fn once for every currently-live port in the bucket,
// holding a reference on each across the callback so the port cannot be
// freed out from under it, and dropping that reference afterward. This is
// the supplemented "Iteration & helpers" component of spec.md §2,
// grounded on original_source/libports/bucket-iterate.c.
func (b *Bucket) Iterate(fn func(p *Port)) {
	indicesLatch.RLock()
	snapshot := make([]*Port, 0, len(b.index))
	for _, p := range b.index {
		p.ref()
		snapshot = append(snapshot, p)
	}
	indicesLatch.RUnlock()

	for _, p := range snapshot {
		fn(p)
		p.deref()
	}
}

// PortCount returns the number of live ports currently indexed in b.
func (b *Bucket) PortCount() int {
	indicesLatch.RLock()
	defer indicesLatch.RUnlock()
	return b.portCount
}

// RPCsInFlight returns the number of RPCs currently admitted against any
// port in the bucket.
func (b *Bucket) RPCsInFlight() int {
	mainLatch.Lock()
	defer mainLatch.Unlock()
	return b.rpcsInFlight
}

// insertLocked adds p to the bucket's index. Caller must hold
// indicesLatch for writing.
func (b *Bucket) insertLocked(p *Port) {
	b.index[p.indexedName] = p
	b.portCount++
}

// removeLocked removes p from the bucket's index, if present. Caller must
// hold indicesLatch for writing.
func (b *Bucket) removeLocked(p *Port) {
	if _, ok := b.index[p.indexedName]; ok {
		delete(b.index, p.indexedName)
		b.portCount--
	}
}

func (b *Bucket) lookupLocked(name PortName) *Port {
	return b.index[name]
}
