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

// Peropen tracks state shared by every Protid derived from the same
// open, mirroring original_source/libtrivfs/trivfs.h's struct
// trivfs_peropen: reference-counted separately from the protid itself
// because io_duplicate (original_source/libtrivfs/io-duplicate.c) hands
// out a second protid sharing one peropen.
type Peropen struct {
	Control   *Control
	OpenModes int32

	mu      sync.Mutex
	refcnt  int
	Hook    interface{}
}

// NewPeropen creates a peropen with one reference outstanding. Its hold
// on cntl is a plain Go reference: the control port's own receive right
// is torn down by HandleGoaway, independent of how many peropens still
// point at it, matching trivfs's goaway refusing to proceed while
// protids remain rather than peropens pinning the control port itself.
func NewPeropen(cntl *Control, openModes int32) *Peropen {
	return &Peropen{Control: cntl, OpenModes: openModes, refcnt: 1}
}

// Ref adds a reference to po, for a duplicated protid (io_duplicate).
func (po *Peropen) Ref() {
	po.mu.Lock()
	po.refcnt++
	po.mu.Unlock()
}

// Deref drops a reference to po, releasing any Hook state once the last
// protid derived from it is gone. Callers that attach resources to Hook
// should clear them here rather than relying on GC alone, mirroring
// peropen-clean.c's explicit teardown.
func (po *Peropen) Deref() {
	po.mu.Lock()
	po.refcnt--
	last := po.refcnt == 0
	po.mu.Unlock()
	if last {
		po.Hook = nil
	}
}

// Protid represents one client's credentials for an open of a
// translator, mirroring struct trivfs_protid (original_source/
// libtrivfs/trivfs.h). UIDs/GIDs/IsRoot stand in for the iouser the real
// library carries (spec.md §1: exact authentication wire format is out
// of scope here; only the port lifecycle is modeled).
type Protid struct {
	Port *ports.Port

	Peropen  *Peropen
	UIDs     []int32
	GIDs     []int32
	IsRoot   bool
	RealNode ports.PortName

	Hook interface{}
}

// ProtidCleanRoutine builds the CleanRoutine for the protid class,
// dropping the peropen reference this protid was holding
// (original_source/libtrivfs/protid-clean.c's trivfs_clean_protid).
func ProtidCleanRoutine(destroy func(cred *Protid)) ports.CleanRoutine {
	return func(p *ports.Port) {
		cred, ok := p.UserData.(*Protid)
		if !ok {
			return
		}
		if destroy != nil {
			destroy(cred)
		}
		cred.Peropen.Deref()
	}
}

// ProtidClass builds the port class used for protid ports. destroy is
// invoked once per protid right before its peropen reference is
// dropped, letting a translator clean up user-hook state
// (trivfs_protid_destroy_hook's role).
func ProtidClass(destroy func(cred *Protid)) *ports.Class {
	return ports.NewClass("xlate-protid", ProtidCleanRoutine(destroy), nil)
}

// NewProtid creates a protid port referring to po, with one reference
// taken on po on its caller's behalf (original_source/libtrivfs/
// open.c's allocation pattern).
func NewProtid(ctx context.Context, kernel ports.Kernel, protidClass *ports.Class, protidBucket *ports.Bucket, po *Peropen, uids, gids []int32, isRoot bool) (*Protid, error) {
	cred := &Protid{
		Peropen: po,
		UIDs:    uids,
		GIDs:    gids,
		IsRoot:  isRoot,
	}

	p, err := ports.CreatePort(ctx, kernel, protidClass, protidBucket, true, cred)
	if err != nil {
		return nil, err
	}
	cred.Port = p
	po.Ref()
	return cred, nil
}

// Duplicate creates a second Protid sharing cred's peropen, for
// io_duplicate (original_source/libtrivfs/io-duplicate.c).
func (cred *Protid) Duplicate(ctx context.Context, kernel ports.Kernel) (*Protid, error) {
	return NewProtid(ctx, kernel, cred.Port.Class(), cred.Port.Bucket(), cred.Peropen, cred.UIDs, cred.GIDs, cred.IsRoot)
}
