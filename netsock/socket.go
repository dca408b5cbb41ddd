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
	"context"
	"net"
	"sync"

	"github.com/hurd-go/ports"
)

// State is a socket's connection state, the Go enum for
// original_source/pfinet/pfinet.h's SS_* constants.
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

// Socket is the Linux-side connection state pfinet's struct socket
// wraps, shared by every SocketUser port that refers to it (multiple
// protids can point at one socket, per original_source/pfinet/socket.c's
// comment on struct sock_user). Protocol processing (actually moving
// bytes per TCP/UDP semantics) is out of scope; this only tracks the
// shape a translator's socket calls observe.
type Socket struct {
	mu sync.Mutex

	refcnt int
	state  State

	LocalAddr  net.Addr
	RemoteAddr net.Addr
	Device     string

	released bool
}

// NewSocket allocates a socket with one reference outstanding, mirroring
// sock_alloc.
func NewSocket() *Socket {
	return &Socket{refcnt: 1, state: StateUnconnected}
}

// State returns the socket's current connection state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState updates the socket's connection state.
func (s *Socket) SetState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// ref bumps the socket's reference count, for a second SocketUser
// pointing at the same socket (original_source/pfinet/socket.c's
// make_sock_user, when consume is zero).
func (s *Socket) ref() {
	s.mu.Lock()
	s.refcnt++
	s.mu.Unlock()
}

// release drops a reference; once it reaches zero the socket is marked
// released and, unless it was never connected, transitions to
// disconnecting, mirroring sock_release.
func (s *Socket) release() {
	s.mu.Lock()
	s.refcnt--
	last := s.refcnt == 0
	if last {
		if s.state != StateUnconnected {
			s.state = StateDisconnecting
		}
		s.released = true
	}
	s.mu.Unlock()
}

// Released reports whether the socket's last reference has been
// dropped.
func (s *Socket) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// SocketUser is one port referring to a Socket, the Go shape of
// original_source/pfinet/pfinet.h's struct sock_user: a port plus the
// caller's root-ness and the shared socket it was opened on.
type SocketUser struct {
	Port   *ports.Port
	Sock   *Socket
	IsRoot bool
}

// SocketClass builds the port class used for socket ports, wiring
// clean_socketport's release-on-cleanup behavior (original_source/
// pfinet/socket.c).
func SocketClass() *ports.Class {
	return ports.NewClass("netsock-socket", cleanSocketUser, nil)
}

func cleanSocketUser(p *ports.Port) {
	if u, ok := p.UserData.(*SocketUser); ok {
		u.Sock.release()
	}
}

// NewSocketUser creates a socket port referring to sock. If consume is
// true, the new port adopts the caller's existing reference on sock
// instead of taking a new one (original_source/pfinet/socket.c's
// make_sock_user CONSUME parameter).
func NewSocketUser(ctx context.Context, kernel ports.Kernel, stack *Stack, sock *Socket, isRoot, consume bool) (*SocketUser, error) {
	if !consume {
		sock.ref()
	}
	u := &SocketUser{Sock: sock, IsRoot: isRoot}

	p, err := ports.CreatePort(ctx, kernel, stack.SocketClass, stack.SocketBucket, true, u)
	if err != nil {
		sock.release()
		return nil, err
	}
	u.Port = p
	return u, nil
}
