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

import "sort"

// CleanRoutine is invoked once, with no library lock held, the first time
// a port's hard refcount reaches zero, whether or not weak references
// remain.
type CleanRoutine func(p *Port)

// DropWeakRoutine is invoked at most once per class, per port, when a
// port's hard refcount drops to zero while its weak refcount is still
// positive. It is expected to clear any weak references the user holds
// back to the port.
type DropWeakRoutine func(p *Port)

// idRange is an inclusive [Low, High] range of message IDs.
type idRange struct {
	Low, High MessageID
}

// Class groups ports sharing cleanup semantics, inhibition state, and an
// uninhibitable-message-ID list (spec.md §3.1). All mutable fields are
// guarded by the package's single mainLatch (spec.md §5), the same latch
// that guards port refcounts and RPC tracking, so begin_rpc/end_rpc can
// update class, bucket, and port counters atomically together.
type Class struct {
	Name string

	Clean    CleanRoutine
	DropWeak DropWeakRoutine

	uninhibitable []idRange // GUARDED_BY(mainLatch), sorted by Low

	inhibited    bool // GUARDED_BY(mainLatch)
	inhibitWait  bool // GUARDED_BY(mainLatch)
	blocked      bool // GUARDED_BY(mainLatch), spec.md §3.1/§4.7 step 2
	rpcsInFlight int  // GUARDED_BY(mainLatch)
	portCount    int  // GUARDED_BY(mainLatch)

	noAlloc bool // GUARDED_BY(mainLatch)
}

// SetNoAlloc controls whether CreatePort/ImportPort calls naming this
// class block on the global condition variable instead of proceeding
// (spec.md §4.2). Used by translators draining outstanding ports before
// an inhibited reconfiguration.
func (c *Class) SetNoAlloc(v bool) {
	mainLatch.Lock()
	c.noAlloc = v
	mainLatch.Unlock()
	if !v {
		mainCond.Broadcast()
	}
}

// NewClass creates a port class. By default only InterruptOperationID is
// uninhibitable, per spec.md §3.1.
func NewClass(name string, clean CleanRoutine, dropWeak DropWeakRoutine) *Class {
	return &Class{
		Name:          name,
		Clean:         clean,
		DropWeak:      dropWeak,
		uninhibitable: []idRange{{Low: InterruptOperationID, High: InterruptOperationID}},
	}
}

// AddUninhibitableRange marks [low, high] as a range of message IDs whose
// RPCs may proceed even while the class is inhibited.
func (c *Class) AddUninhibitableRange(low, high MessageID) {
	mainLatch.Lock()
	defer mainLatch.Unlock()

	c.uninhibitable = append(c.uninhibitable, idRange{Low: low, High: high})
	sort.Slice(c.uninhibitable, func(i, j int) bool {
		return c.uninhibitable[i].Low < c.uninhibitable[j].Low
	})
}

// uninhibitableLocked reports whether msgID falls within one of the
// class's uninhibitable ranges. Caller must hold mainLatch.
func (c *Class) uninhibitableLocked(msgID MessageID) bool {
	for _, r := range c.uninhibitable {
		if msgID >= r.Low && msgID <= r.High {
			return true
		}
	}
	return false
}

// RPCsInFlight returns the number of RPCs currently admitted against any
// port in the class.
func (c *Class) RPCsInFlight() int {
	mainLatch.Lock()
	defer mainLatch.Unlock()
	return c.rpcsInFlight
}

// PortCount returns the number of live ports currently in the class.
func (c *Class) PortCount() int {
	mainLatch.Lock()
	defer mainLatch.Unlock()
	return c.portCount
}

// incPortCount and decPortCount maintain the class's live-port count.
// They take mainLatch themselves rather than assuming the caller already
// holds it, since their callers (cleanupRight, create.go's installPort)
// hold neither latch at that point.
func (c *Class) incPortCount() {
	mainLatch.Lock()
	c.portCount++
	mainLatch.Unlock()
}

func (c *Class) decPortCount() {
	mainLatch.Lock()
	c.portCount--
	mainLatch.Unlock()
}
