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

// PortName is the numeric identity a kernel capability has within a task.
type PortName uint32

// Invalid is the port name used when no name is applicable.
const Invalid PortName = 0

// MessageID identifies the RPC being invoked in an incoming message; it
// plays the role of a MIG routine selector.
type MessageID uint32

// InterruptOperationID is the distinguished message ID that carries a
// cancellation request (spec.md §4.9). It is always uninhibitable.
const InterruptOperationID MessageID = 0xffffffff

// SeqNo is a message sequence number, used to order interrupt-operation
// requests against the RPCs they should cancel.
type SeqNo uint64

// NotifyKind enumerates the kernel notifications the runtime understands.
type NotifyKind int

const (
	DeadName NotifyKind = iota
	NoSenders
	MsgAccepted
	PortDeleted
	PortDestroyed
	SendOnce
)

func (k NotifyKind) String() string {
	switch k {
	case DeadName:
		return "dead-name"
	case NoSenders:
		return "no-senders"
	case MsgAccepted:
		return "msg-accepted"
	case PortDeleted:
		return "port-deleted"
	case PortDestroyed:
		return "port-destroyed"
	case SendOnce:
		return "send-once"
	default:
		return "unknown-notify"
	}
}

// flags is the per-port bitset of spec.md §3.1.
type flags uint32

const (
	flagHasSendRights flags = 1 << iota
	flagInhibited
	flagBlocked
	flagInhibitWait
)

// Epoch is the generation color used by the deferred-reclamation scheme
// (spec.md §3.1, §4.4).
type Epoch uint8

const (
	Black Epoch = iota
	White
)

func (e Epoch) flip() Epoch {
	if e == Black {
		return White
	}
	return Black
}

// MsgTarget is the dispatcher's notion of where an incoming message is
// addressed: either a protected-payload pointer (the fast path) or a bare
// port name (the hash-lookup fallback). Exactly one of the two is set.
type MsgTarget struct {
	payload *Port
	name    PortName
}

// PayloadTarget builds a fast-path MsgTarget from a protected-payload
// pointer recovered from the kernel message header.
func PayloadTarget(p *Port) MsgTarget {
	return MsgTarget{payload: p}
}

// NameTarget builds a MsgTarget that must be resolved via hash lookup.
func NameTarget(name PortName) MsgTarget {
	return MsgTarget{name: name}
}

// HasPayload reports whether t carries a protected-payload pointer.
func (t MsgTarget) HasPayload() bool {
	return t.payload != nil
}

// IncomingMessage is the header information the dispatcher inspects before
// handing a message to the user demuxer. The payload/body beyond this
// header is opaque to the library (spec.md §6).
type IncomingMessage struct {
	Target     MsgTarget
	ID         MessageID
	SeqNo      SeqNo
	RemotePort PortName
	Bits       uint32
}
