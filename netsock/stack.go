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

package netsock

import (
	"sync"
	"time"

	"github.com/hurd-go/ports"
	"github.com/jacobsa/timeutil"
)

// Stack is the translator's single global networking state, mirroring
// original_source/pfinet/pfinet.h's global_lock plus the net_families
// table in socket.c. mu guards the device table, the delivery callback,
// and the clock state; the FIB carries its own lock, and each Socket
// guards its own state, so routes and sockets are not under mu.
type Stack struct {
	mu sync.Mutex

	devices map[string]Device
	fib     *FIB

	SocketClass  *ports.Class
	SocketBucket *ports.Bucket
	AddrClass    *ports.Class
	AddrBucket   *ports.Bucket

	deliverFunc func(dev string, pkt *Packet)

	clock       timeutil.Clock
	lastDeliver time.Time
}

// NewStack creates an empty stack sharing one socket port class/bucket
// and one address port class/bucket across every socket it hands out,
// the same pairing original_source/pfinet/socket.c's make_sock_user
// uses (socketport_class, pfinet_bucket).
func NewStack(kernel ports.Kernel, socketBucket, addrBucket *ports.Bucket) *Stack {
	s := &Stack{
		devices: make(map[string]Device),
		fib:     NewFIB(),
		clock:   timeutil.RealClock(),
	}
	s.SocketBucket = socketBucket
	s.AddrBucket = addrBucket
	s.SocketClass = SocketClass()
	s.AddrClass = AddrClass()
	return s
}

// RegisterDevice adds dev to the stack under its own name, replacing any
// device already registered with that name.
func (s *Stack) RegisterDevice(dev Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[dev.Name()] = dev
}

// Device looks up a registered device by name.
func (s *Stack) Device(name string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[name]
	return d, ok
}

// Devices returns the names of every registered device.
func (s *Stack) Devices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.devices))
	for name := range s.devices {
		names = append(names, name)
	}
	return names
}

// FIB returns the stack's forwarding table.
func (s *Stack) FIB() *FIB {
	return s.fib
}

// SetClock overrides the stack's clock, the same injection point the
// teacher's sample file systems take a timeutil.Clock through their
// constructor for, so tests can control LastDeliver without sleeping.
func (s *Stack) SetClock(clock timeutil.Clock) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// LastDeliver returns the time of the most recent OnDeliver callback,
// the zero Time if none has fired yet.
func (s *Stack) LastDeliver() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDeliver
}

// OnDeliver registers the callback invoked when a device hands a packet
// up the stack (Device.Transmit on a loopback device, or
// TunnelDevice.Inject). Matches pfinet's net_bh "software interrupt"
// step between a device's receive hook and socket-level processing
// (misc.c), collapsed here into a direct call since there's no
// scheduler to defer through. Routing the packet to the socket that
// owns it is protocol-specific and out of scope here; callers needing
// that wire it up themselves in the callback.
func (s *Stack) OnDeliver(f func(dev string, pkt *Packet)) {
	s.mu.Lock()
	s.deliverFunc = f
	s.mu.Unlock()
}

func (s *Stack) deliverLocked(dev string, pkt *Packet) {
	s.mu.Lock()
	f := s.deliverFunc
	s.lastDeliver = s.clock.Now()
	s.mu.Unlock()
	if f != nil {
		f(dev, pkt)
	}
}

// AddLoopback creates and registers the stack's "lo" device, wired to
// this stack's OnDeliver callback.
func (s *Stack) AddLoopback() *LoopbackDevice {
	dev := NewLoopbackDevice(s.deliverLocked)
	s.RegisterDevice(dev)
	return dev
}

// AddTunnel creates and registers a tunnel device named name, wired to
// this stack's OnDeliver callback for packets Inject'd from its
// external reader.
func (s *Stack) AddTunnel(name string, queueLen int) *TunnelDevice {
	dev := NewTunnelDevice(name, queueLen, s.deliverLocked)
	s.RegisterDevice(dev)
	return dev
}

// AddDummy creates and registers a dummy device named name.
func (s *Stack) AddDummy(name string) *DummyDevice {
	dev := NewDummyDevice(name)
	s.RegisterDevice(dev)
	return dev
}
