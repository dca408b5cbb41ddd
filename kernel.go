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

// ReceiveRight is the kernel capability that allows reading messages; it
// is unique per port in the owning task (spec.md GLOSSARY). The concrete
// Mach wire format is out of scope (spec.md §1); this interface is the
// seam an actual kernel binding or a test stand-in implements.
type ReceiveRight interface {
	// Name returns the port name this right is currently known by.
	Name() PortName

	// Valid reports whether the right is still live (not yet destroyed).
	Valid() bool

	// SetProtectedPayload attaches the opaque fast-path pointer the
	// kernel will hand back on message arrival (spec.md §4.1, §9).
	SetProtectedPayload(p *Port)
}

// deadRight is the sentinel ReceiveRight installed after DestroyRight,
// distinguishing "destroyed" from "never had one" (spec.md §3.1).
type deadRight struct{}

func (deadRight) Name() PortName              { return Invalid }
func (deadRight) Valid() bool                  { return false }
func (deadRight) SetProtectedPayload(*Port)    {}

var Dead ReceiveRight = deadRight{}

// RightStatus describes the kernel-visible state of a receive right at
// the moment it was imported, for ImportPort/ReallocateFromExternal.
type RightStatus struct {
	HasSendRights bool
	MakeSendCount uint32
}

// Portset is the kernel's polling-set collaborator: the construct that
// lets a single receive call service every port in a bucket (spec.md
// GLOSSARY).
type Portset interface {
	// Add installs right into the portset so messages addressed to it
	// are delivered through Receive.
	Add(right ReceiveRight) error

	// Remove uninstalls right from the portset.
	Remove(right ReceiveRight) error

	// Receive blocks for the next message, or returns ctx.Err() if ctx is
	// done first.
	Receive(ctx context.Context) (*IncomingMessage, error)
}

// Kernel is the abstracted Mach collaborator: allocation, destruction,
// notification arming, and status queries for receive rights. Concrete
// IPC transport is abstracted per spec.md §1; internal/machshim supplies
// an in-process implementation used by this package's own tests.
type Kernel interface {
	// AllocateReceiveRight creates a fresh receive right.
	AllocateReceiveRight() (ReceiveRight, error)

	// DestroyReceiveRight deallocates right's receive right in the
	// kernel. After this call the right is no longer Valid.
	DestroyReceiveRight(right ReceiveRight) error

	// Status returns the kernel-visible send-rights/make-send state of
	// right, used by ImportPort and ReallocateFromExternal.
	Status(right ReceiveRight) (RightStatus, error)

	// RequestNoSendersNotification arms a no-senders notification on
	// right, to be delivered back to right itself once the kernel-visible
	// make-send count reaches sync.
	RequestNoSendersNotification(right ReceiveRight, sync uint32) error

	// RequestDeadNameNotification arms a dead-name notification for the
	// send right the caller holds to name, delivered to notify.
	RequestDeadNameNotification(name PortName, notify ReceiveRight) error

	// DeallocateExtraRef drops the extra reference the kernel hands back
	// alongside a dead-name notification (spec.md §6).
	DeallocateExtraRef(name PortName) error
}
