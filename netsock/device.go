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
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/net/ipv4"
)

// Stats mirrors the handful of counters original_source/pfinet/*.c's
// struct net_device_stats exposes per device.
type Stats struct {
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
}

// Packet is one frame moving through a Device, tagged with the per-packet
// metadata pfinet's io-ops.c/iioctl-ops.c report back to a socket's
// reader (source/destination, TTL, receiving interface).
type Packet struct {
	Payload []byte
	CM      *ipv4.ControlMessage
}

// Device is a network interface stand-in, generalizing the
// loopback_dev/dummy_dev/tunnel_dev shapes from original_source/pfinet/
// {loopback,dummy,tunnel}.c down to the operations a Stack needs:
// transmit a packet, and report the counters the options/ioctl surface
// reads back.
type Device interface {
	Name() string
	MTU() int
	Stats() Stats
	Transmit(pkt *Packet) error
}

type baseDevice struct {
	name string
	mtu  int
	rx   atomic.Uint64
	tx   atomic.Uint64
	rxB  atomic.Uint64
	txB  atomic.Uint64
}

func (d *baseDevice) Name() string { return d.name }
func (d *baseDevice) MTU() int     { return d.mtu }

func (d *baseDevice) Stats() Stats {
	return Stats{
		RxPackets: d.rx.Load(),
		TxPackets: d.tx.Load(),
		RxBytes:   d.rxB.Load(),
		TxBytes:   d.txB.Load(),
	}
}

func (d *baseDevice) countTx(n int) {
	d.tx.Add(1)
	d.txB.Add(uint64(n))
}

func (d *baseDevice) countRx(n int) {
	d.rx.Add(1)
	d.rxB.Add(uint64(n))
}

// LoopbackDevice mirrors loopback.c's loopback_xmit: every transmitted
// packet is immediately fed back in as received, with the stack's
// deliver hook invoked directly rather than through a kernel netif_rx
// queue.
type LoopbackDevice struct {
	baseDevice
	deliver func(dev string, pkt *Packet)
}

// NewLoopbackDevice creates the "lo" device, handing received packets to
// deliver (normally Stack.deliverLocked).
func NewLoopbackDevice(deliver func(dev string, pkt *Packet)) *LoopbackDevice {
	return &LoopbackDevice{
		baseDevice: baseDevice{name: "lo", mtu: 65536 - 172},
		deliver:    deliver,
	}
}

func (d *LoopbackDevice) Transmit(pkt *Packet) error {
	d.countTx(len(pkt.Payload))
	d.countRx(len(pkt.Payload))
	if d.deliver != nil {
		d.deliver(d.name, pkt)
	}
	return nil
}

// DummyDevice mirrors dummy.c's dummy_xmit: packets are counted and
// dropped, for an interface that exists (so routes can name it) but
// carries no real traffic.
type DummyDevice struct {
	baseDevice
}

// NewDummyDevice creates a dummy device with the given name.
func NewDummyDevice(name string) *DummyDevice {
	return &DummyDevice{baseDevice: baseDevice{name: name, mtu: 1500}}
}

func (d *DummyDevice) Transmit(pkt *Packet) error {
	d.countTx(len(pkt.Payload))
	return nil
}

// TunnelDevice mirrors tunnel.c's struct tunnel_device: transmitted
// packets are queued for an external reader (the process that opened
// the underlying tunnel node) instead of being handled in-process, and
// incoming packets from that reader are injected back via Inject.
type TunnelDevice struct {
	baseDevice

	mu      sync.Mutex
	readCh  chan *Packet
	closed  bool
	deliver func(dev string, pkt *Packet)
}

// NewTunnelDevice creates a tunnel device named name, queuing up to
// queueLen outgoing packets for its external reader.
func NewTunnelDevice(name string, queueLen int, deliver func(dev string, pkt *Packet)) *TunnelDevice {
	return &TunnelDevice{
		baseDevice: baseDevice{name: name, mtu: 1500},
		readCh:     make(chan *Packet, queueLen),
		deliver:    deliver,
	}
}

// Transmit queues pkt for the external reader (ReadPacket).
func (d *TunnelDevice) Transmit(pkt *Packet) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return net.ErrClosed
	}
	d.countTx(len(pkt.Payload))
	select {
	case d.readCh <- pkt:
	default:
		// Queue full: drop, matching xq overflow behavior in tunnel.c.
	}
	return nil
}

// ReadPacket blocks until a transmitted packet is available or the
// device is closed.
func (d *TunnelDevice) ReadPacket() (*Packet, bool) {
	pkt, ok := <-d.readCh
	return pkt, ok
}

// Inject delivers a packet read from the external tunnel node back into
// the stack, as if it had arrived over the wire.
func (d *TunnelDevice) Inject(pkt *Packet) {
	d.countRx(len(pkt.Payload))
	if d.deliver != nil {
		d.deliver(d.name, pkt)
	}
}

// Close stops accepting further transmits and unblocks any reader.
func (d *TunnelDevice) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.readCh)
	}
	d.mu.Unlock()
}
