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

// Package machshim is an in-process stand-in for the Mach microkernel
// that github.com/hurd-go/ports talks to in production. It implements
// ports.Kernel and ports.Portset entirely with Go maps and channels, so
// the port runtime and everything built on it (xlate, netsock) can be
// exercised without a real kernel, per spec.md §1's "concrete IPC
// transport is abstracted."
//
// It plays the role the teacher's /dev/fuse device file plays for
// Connection: the thing on the other end of the wire, reduced to
// exactly the behavior the library under test depends on.
package machshim

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hurd-go/ports"
)

// nextName is shared by every Shim, so names handed out by different Shims
// never collide in the port runtime's process-wide index.
var nextName uint32

// Shim is a single in-process kernel instance: a table of the receive
// rights allocated through it and one message queue per portset created
// against it.
type Shim struct {
	mu     sync.Mutex
	rights map[ports.PortName]*rightState
}

type rightState struct {
	valid         bool
	hasSendRights bool
	mscount       uint32
	payload       *ports.Port

	noSendersArmed bool
	deadNameArmed  bool
}

// New creates an empty shim kernel.
func New() *Shim {
	return &Shim{rights: make(map[ports.PortName]*rightState)}
}

// Right is Shim's ports.ReceiveRight implementation: a name into the
// owning Shim's rights table.
type Right struct {
	shim *Shim
	name ports.PortName
}

func (r *Right) Name() ports.PortName { return r.name }

func (r *Right) Valid() bool {
	r.shim.mu.Lock()
	defer r.shim.mu.Unlock()
	st, ok := r.shim.rights[r.name]
	return ok && st.valid
}

func (r *Right) SetProtectedPayload(p *ports.Port) {
	r.shim.mu.Lock()
	defer r.shim.mu.Unlock()
	if st, ok := r.shim.rights[r.name]; ok {
		st.payload = p
	}
}

// AllocateReceiveRight implements ports.Kernel.
func (s *Shim) AllocateReceiveRight() (ports.ReceiveRight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := ports.PortName(atomic.AddUint32(&nextName, 1))
	s.rights[name] = &rightState{valid: true}
	return &Right{shim: s, name: name}, nil
}

// DestroyReceiveRight implements ports.Kernel.
func (s *Shim) DestroyReceiveRight(right ports.ReceiveRight) error {
	r := right.(*Right)
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rights[r.name]; ok {
		st.valid = false
		st.payload = nil
	}
	return nil
}

// Status implements ports.Kernel.
func (s *Shim) Status(right ports.ReceiveRight) (ports.RightStatus, error) {
	r := right.(*Right)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rights[r.name]
	if !ok {
		return ports.RightStatus{}, nil
	}
	return ports.RightStatus{HasSendRights: st.hasSendRights, MakeSendCount: st.mscount}, nil
}

// RequestNoSendersNotification implements ports.Kernel. It just records
// that arming happened; tests deliver the notification themselves by
// calling ports.DeliverNoSenders.
func (s *Shim) RequestNoSendersNotification(right ports.ReceiveRight, sync uint32) error {
	r := right.(*Right)
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rights[r.name]; ok {
		st.noSendersArmed = true
		st.mscount = sync
	}
	return nil
}

// RequestDeadNameNotification implements ports.Kernel.
func (s *Shim) RequestDeadNameNotification(name ports.PortName, notify ports.ReceiveRight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rights[name]; ok {
		st.deadNameArmed = true
	}
	return nil
}

// DeallocateExtraRef implements ports.Kernel.
func (s *Shim) DeallocateExtraRef(name ports.PortName) error {
	return nil
}

// SetHasSendRights lets a test simulate an externally-supplied right
// (for ImportPort/ReallocateFromExternal) that already has outstanding
// send rights.
func (s *Shim) SetHasSendRights(right ports.ReceiveRight, v bool, mscount uint32) {
	r := right.(*Right)
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rights[r.name]; ok {
		st.hasSendRights = v
		st.mscount = mscount
	}
}

// NoSendersArmed reports whether RequestNoSendersNotification has been
// ever been called on right (the flag is never cleared), for tests
// asserting GetRight's arm-once behavior.
func (s *Shim) NoSendersArmed(right ports.ReceiveRight) bool {
	r := right.(*Right)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rights[r.name]
	return ok && st.noSendersArmed
}

// DeadNameArmed reports whether RequestDeadNameNotification has been
// called for name.
func (s *Shim) DeadNameArmed(name ports.PortName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rights[name]
	return ok && st.deadNameArmed
}

// Set is a fixed-capacity FIFO of *ports.IncomingMessage, implementing
// ports.Portset. Add/Remove are bookkeeping no-ops beyond membership
// tracking: messages are delivered to whichever Set a test Enqueues
// them on, there being no real kernel routing to emulate.
type Set struct {
	mu      sync.Mutex
	members map[ports.PortName]bool
	msgs    chan *ports.IncomingMessage
}

// NewSet creates a portset with the given receive buffer size.
func NewSet(buffer int) *Set {
	return &Set{
		members: make(map[ports.PortName]bool),
		msgs:     make(chan *ports.IncomingMessage, buffer),
	}
}

func (s *Set) Add(right ports.ReceiveRight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[right.Name()] = true
	return nil
}

func (s *Set) Remove(right ports.ReceiveRight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, right.Name())
	return nil
}

// Receive implements ports.Portset, blocking until a message is
// enqueued or ctx is done.
func (s *Set) Receive(ctx context.Context) (*ports.IncomingMessage, error) {
	select {
	case msg := <-s.msgs:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enqueue delivers msg to the set as if the kernel had just received it,
// for tests driving the dispatch loops directly.
func (s *Set) Enqueue(msg *ports.IncomingMessage) {
	s.msgs <- msg
}
