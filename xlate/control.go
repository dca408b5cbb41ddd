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
	"sync"

	"github.com/hurd-go/ports"
)

// Control is the translator's control port: one per running instance,
// grounded on original_source/libtrivfs/trivfs.h's struct trivfs_control.
// It owns the port classes and buckets used for every protid it hands
// out to clients.
type Control struct {
	Port *ports.Port

	ProtidClass  *ports.Class
	ProtidBucket *ports.Bucket

	FS FSOps

	mu         sync.Mutex
	underlying ports.PortName // GUARDED_BY(mu)
	goneAway   bool           // GUARDED_BY(mu)
}

// FSOps is the set of callbacks a translator supplies; Control dispatches
// the corresponding MiG-level requests to these. Every method mirrors one
// of libtrivfs's user-supplied hooks (trivfs_goaway, trivfs_S_fsys_*).
type FSOps interface {
	// Goaway is called for fsys_goaway (original_source/libtrivfs/
	// fsys-goaway.c): the translator should detach itself if flags
	// permits, or return an error (typically BusyErr) to refuse.
	Goaway(ctx context.Context, flags int32) error

	// SetOptions handles fsys_set_options (original_source/libtrivfs/
	// set-options.c): argv is a flat list of command-line-style
	// arguments to re-parse.
	SetOptions(ctx context.Context, argv []string) error

	// GetOptions handles fsys_get_options (original_source/libtrivfs/
	// fsys-get-options.c): it returns the translator's current argv.
	GetOptions(ctx context.Context) ([]string, error)
}

// ControlClass builds the port class used for control ports, wiring
// cleanControl as its CleanRoutine (original_source/libtrivfs/
// cntl-create.c installs trivfs_clean_cntl the same way).
func ControlClass() *ports.Class {
	return ports.NewClass("xlate-control", cleanControl, nil)
}

func cleanControl(p *ports.Port) {
	if c, ok := p.UserData.(*Control); ok {
		c.mu.Lock()
		c.goneAway = true
		c.mu.Unlock()
	}
}

// NewControl creates a translator's control port in controlClass/
// controlBucket, wired to protidClass/protidBucket for the protids it
// will hand out (original_source/libtrivfs/cntl-create.c's
// trivfs_create_control). underlying is the node the translator sits on
// top of; it may be ports.Invalid if none exists yet (set later via
// SetUnderlying, as trivfs_startup does once fsys_startup returns it).
func NewControl(ctx context.Context, kernel ports.Kernel, controlClass *ports.Class, controlBucket *ports.Bucket, protidClass *ports.Class, protidBucket *ports.Bucket, fs FSOps, underlying ports.PortName) (*Control, error) {
	c := &Control{
		ProtidClass:  protidClass,
		ProtidBucket: protidBucket,
		FS:           fs,
		underlying:   underlying,
	}

	p, err := ports.CreatePort(ctx, kernel, controlClass, controlBucket, true, c)
	if err != nil {
		return nil, err
	}
	c.Port = p
	return c, nil
}

// Underlying returns the node name this translator sits on top of.
func (c *Control) Underlying() ports.PortName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.underlying
}

// SetUnderlying records the underlying node name once it becomes known
// (e.g. the reply to fsys_startup).
func (c *Control) SetUnderlying(name ports.PortName) {
	c.mu.Lock()
	c.underlying = name
	c.mu.Unlock()
}

// GoneAway reports whether Goaway has already torn this control down.
func (c *Control) GoneAway() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goneAway
}

// HandleGoaway implements the fsys_goaway request: it calls the
// translator's Goaway hook and, on success, destroys the control port's
// receive right (original_source/libtrivfs/fsys-goaway.c).
func (c *Control) HandleGoaway(ctx context.Context, flags int32) error {
	if err := c.FS.Goaway(ctx, flags); err != nil {
		return err
	}
	c.mu.Lock()
	c.goneAway = true
	c.mu.Unlock()
	return c.Port.DestroyRight()
}
