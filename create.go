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

// noAllocLocked methods back waitForAlloc's gate check for Class and
// Bucket: both can be configured to refuse new port creation, forcing
// callers to block on mainCond until the gate opens (spec.md §4.2).
func (c *Class) noAllocLocked() bool  { return c.noAlloc }
func (b *Bucket) noAllocLocked() bool { return b.noAlloc }

// CreatePort allocates a fresh kernel receive right and a Port wrapping
// it, linked into class, bucket, and the global index. If install is
// true, the right is additionally added to the bucket's portset so
// messages addressed to it begin arriving immediately.
//
// If class or bucket has its NoAlloc flag set (SetNoAlloc), CreatePort
// blocks on the package's global condition variable until it clears.
// Blocking honors ctx: cancellation returns InterruptedErr and leaves no
// trace (spec.md §4.2).
func CreatePort(ctx context.Context, kernel Kernel, class *Class, bucket *Bucket, install bool, userData interface{}) (*Port, error) {
	if err := waitForAlloc(ctx, class, bucket); err != nil {
		return nil, err
	}

	right, err := kernel.AllocateReceiveRight()
	if err != nil {
		return nil, newErr("CreatePort", OutOfMemory, err)
	}

	p := &Port{
		class:    class,
		bucket:   bucket,
		kernel:   kernel,
		hard:     1,
		UserData: userData,
	}

	if rollbackErr := installPort(p, right, install); rollbackErr != nil {
		kernel.DestroyReceiveRight(right)
		return nil, rollbackErr
	}

	return p, nil
}

// ImportPort is like CreatePort, but adopts an externally-supplied
// receive right instead of allocating a new one. It reads the right's
// current status and pre-arms HasSendRights/mscount/hard to match
// (spec.md §4.2).
func ImportPort(ctx context.Context, kernel Kernel, class *Class, bucket *Bucket, right ReceiveRight, install bool, userData interface{}) (*Port, error) {
	if err := waitForAlloc(ctx, class, bucket); err != nil {
		return nil, err
	}

	status, err := kernel.Status(right)
	if err != nil {
		return nil, newErr("ImportPort", ExternalIPC, err)
	}

	p := &Port{
		class:    class,
		bucket:   bucket,
		kernel:   kernel,
		hard:     1,
		mscount:  status.MakeSendCount,
		UserData: userData,
	}
	if status.HasSendRights {
		p.bits |= flagHasSendRights
		p.hard++
	}

	if rollbackErr := installPort(p, right, install); rollbackErr != nil {
		return nil, rollbackErr
	}

	return p, nil
}

// waitForAlloc blocks on mainCond while class or bucket refuses
// allocation, returning InterruptedErr if ctx is cancelled first.
func waitForAlloc(ctx context.Context, class *Class, bucket *Bucket) error {
	if ctx.Err() != nil {
		return InterruptedErr
	}

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			mainLatch.Lock()
			mainCond.Broadcast()
			mainLatch.Unlock()
		})
		defer stop()
	}

	mainLatch.Lock()
	for (class != nil && class.noAllocLocked()) || (bucket != nil && bucket.noAllocLocked()) {
		if ctx.Err() != nil {
			mainLatch.Unlock()
			return InterruptedErr
		}
		mainCond.Wait()
	}
	mainLatch.Unlock()
	return nil
}

// installPort links p into the class, bucket, and global indices under
// indicesLatch's writer side, sets the protected payload, and optionally
// adds the right to the bucket's portset. On any failure it unwinds
// everything it did and returns an error; the caller is responsible for
// destroying the kernel right itself.
func installPort(p *Port, right ReceiveRight, install bool) error {
	indicesLatch.Lock()
	name := right.Name()
	if _, exists := globalIndex[name]; exists {
		indicesLatch.Unlock()
		return newErr("CreatePort", BadName, nil)
	}

	p.portRight = right
	p.indexedName = name
	insertIndicesLocked(p)
	indicesLatch.Unlock()

	p.class.incPortCount()

	if install {
		if err := p.bucket.portset.Add(right); err != nil {
			indicesLatch.Lock()
			removeIndicesLocked(p)
			p.portRight = Dead
			indicesLatch.Unlock()
			p.class.decPortCount()
			return newErr("CreatePort", ExternalIPC, err)
		}
	}

	return nil
}
