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

	"github.com/hurd-go/ports"
)

// AddrPort is a socket address port: a lightweight port handed back for
// getsockname/getpeername/socket-to-file-name style requests, mirroring
// original_source/pfinet/pfinet.h's struct sock_addr (a port wrapping a
// flat byte address). No clean-up action is needed beyond the generic
// port teardown, since an AddrPort owns no shared resource the way a
// SocketUser owns a reference on its Socket.
type AddrPort struct {
	Port    *ports.Port
	Address net.Addr
}

// AddrClass builds the port class used for socket address ports.
func AddrClass() *ports.Class {
	return ports.NewClass("netsock-addr", func(*ports.Port) {}, nil)
}

// NewAddrPort creates an address port reporting addr.
func NewAddrPort(ctx context.Context, kernel ports.Kernel, stack *Stack, addr net.Addr) (*AddrPort, error) {
	a := &AddrPort{Address: addr}
	p, err := ports.CreatePort(ctx, kernel, stack.AddrClass, stack.AddrBucket, true, a)
	if err != nil {
		return nil, err
	}
	a.Port = p
	return a, nil
}
