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

package xlate

import (
	"context"

	"github.com/hurd-go/ports"
)

// Handler answers one message. It is handed the port UserData looked up
// for msg's target (a *Control or *Protid, depending on which class the
// handler was registered for) alongside the message itself.
type Handler func(ctx context.Context, userData interface{}, msg *ports.IncomingMessage) error

// route pairs a handler with the class/bucket its target must belong to,
// so the dispatcher knows which lookup to run before invoking it.
type route struct {
	class   *ports.Class
	bucket  *ports.Bucket
	handler Handler
}

// Dispatcher is a message-ID keyed demuxer, generalizing
// original_source/libtrivfs/demuxer.c's chained lookup across several
// MiG-generated routine tables (trivfs_io_server_routine,
// trivfs_fs_server_routine, ...) into one map: trivfs_demuxer itself only
// identifies which table matches an incoming message ID, while the
// generated routine body (e.g. trivfs_S_fsys_goaway) independently calls
// ports_get_port to resolve the port object. Dispatcher.AsDemuxFunc plays
// both roles, the same way fuseutil.fileSystemServer.handleOp looks up
// the inode owning an op and then switches on its type.
type Dispatcher struct {
	routes map[ports.MessageID]route
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{routes: make(map[ports.MessageID]route)}
}

// Register wires id to handler, to be invoked with the UserData of
// whatever port in class/bucket a message with that ID targets.
// Registering the same id twice replaces the earlier handler.
func (d *Dispatcher) Register(id ports.MessageID, class *ports.Class, bucket *ports.Bucket, handler Handler) {
	d.routes[id] = route{class: class, bucket: bucket, handler: handler}
}

// AsDemuxFunc adapts d to ports.DemuxFunc. It looks up msg.ID in the
// route table, resolves msg.Target against that route's class/bucket
// (ports.DemuxFunc is not handed the already-resolved *ports.Port, so
// the dispatcher must do its own Lookup here, exactly as each generated
// MiG routine body does in the C original), and reports whether the
// message ID was recognized at all.
func (d *Dispatcher) AsDemuxFunc() ports.DemuxFunc {
	return func(ctx context.Context, msg *ports.IncomingMessage) bool {
		r, ok := d.routes[msg.ID]
		if !ok {
			return false
		}

		p, err := ports.Lookup(msg.Target, r.class, r.bucket)
		if err != nil {
			logDispatchError(msg.ID, err)
			return true
		}
		defer p.Deref()

		if err := r.handler(ctx, p.UserData, msg); err != nil {
			logDispatchError(msg.ID, err)
		}
		return true
	}
}
