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
)

// Route is one forwarding-table entry, the Go shape of what
// original_source/pfinet/options.c's configure_device/SIOCADDRT-style
// handling keeps per interface: a destination network, an optional
// gateway, and the device to send through. Only net.IPNet/net.IP
// represent addresses here — no third-party library in the retrieved
// pack models CIDR routing, so the standard library's address types are
// the correct building block for the FIB regardless.
type Route struct {
	Dest    net.IPNet
	Gateway net.IP
	Device  string
}

// FIB is a minimal forwarding information base: a flat list of routes,
// matched by longest prefix, standing in for the kernel routing table
// pfinet's SIOCADDRT/SIOCDELRT ioctls (iioctl-ops.c) would otherwise
// maintain.
type FIB struct {
	mu     sync.RWMutex
	routes []Route
}

// NewFIB creates an empty forwarding table.
func NewFIB() *FIB {
	return &FIB{}
}

// Add installs route, replacing any existing route with the same
// destination.
func (f *FIB) Add(r Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.routes {
		if existing.Dest.String() == r.Dest.String() {
			f.routes[i] = r
			return
		}
	}
	f.routes = append(f.routes, r)
}

// Remove deletes the route for dest, if any.
func (f *FIB) Remove(dest net.IPNet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.routes {
		if existing.Dest.String() == dest.String() {
			f.routes = append(f.routes[:i], f.routes[i+1:]...)
			return
		}
	}
}

// Lookup returns the most specific route whose destination contains ip,
// or false if none match.
func (f *FIB) Lookup(ip net.IP) (Route, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var best *Route
	bestOnes := -1
	for i := range f.routes {
		r := &f.routes[i]
		if !r.Dest.Contains(ip) {
			continue
		}
		ones, _ := r.Dest.Mask.Size()
		if ones > bestOnes {
			bestOnes = ones
			best = r
		}
	}
	if best == nil {
		return Route{}, false
	}
	return *best, true
}

// Routes returns a snapshot of every installed route.
func (f *FIB) Routes() []Route {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Route, len(f.routes))
	copy(out, f.routes)
	return out
}
