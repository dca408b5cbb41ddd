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

// DestroyRight tears down p's receive right: it is removed from both
// indices, its protected payload is cleared, and the underlying kernel
// right is destroyed (spec.md §4.4). Any further Lookup for p's old name
// or payload fails.
//
// If p currently has HasSendRights set, the library's own reference on
// behalf of those outstanding send rights is not dropped here; it is
// scheduled on the bucket's threadpool so it only runs once every worker
// that might still be dereferencing p's payload pointer has quiesced
// (spec.md §4.4, §5).
func (p *Port) DestroyRight() error {
	indicesLatch.Lock()
	right := p.portRight
	if right == nil || !right.Valid() {
		indicesLatch.Unlock()
		return NotSupportedErr
	}
	removeIndicesLocked(p)
	p.portRight = Dead
	indicesLatch.Unlock()

	p.class.decPortCount()

	if err := p.kernel.DestroyReceiveRight(right); err != nil {
		return newErr("DestroyRight", ExternalIPC, err)
	}

	mainLatch.Lock()
	hadSendRights := p.hasSendRightsLocked()
	mainLatch.Unlock()

	if hadSendRights {
		p.bucket.threadpool.scheduleDeferred(p)
	}

	return nil
}
