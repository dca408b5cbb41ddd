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

import "sync"

// threadpool tracks the epoch/generation state used for deferred
// reclamation of payload pointers (spec.md §3.1, §4.4, §5).
//
// Every live worker carries a local color tag, handed out by addWorker and
// updated by quiescent. A worker tagged with the threadpool's current
// color has not yet passed a quiescent point this epoch and may still be
// dereferencing a payload pointer that existed when objects were last
// deferred; oldThreads counts exactly this cohort. When it reaches zero,
// every worker present has quiesced at least once, so old_objects (the
// generation deferred before the previous flip) can be freed safely, and
// the generations flip: old := young, a fresh oldThreads count is taken
// from the current worker total, and the color inverts.
//
// The spinlock called for in spec.md §9 has no dedicated primitive in this
// corpus's ecosystem; a bare sync.Mutex held only across pointer-list
// manipulation (never across a blocking call) is the idiomatic stand-in.
type threadpool struct {
	latch sync.Mutex // GUARDED_BY: itself

	color Epoch // GUARDED_BY(latch)

	total      int // GUARDED_BY(latch) — live worker count
	oldThreads int // GUARDED_BY(latch) — workers yet to quiesce this epoch

	oldObjects, youngObjects []*Port // GUARDED_BY(latch)
}

func newThreadpool() *threadpool {
	return &threadpool{color: Black}
}

// addWorker registers a new worker thread and returns the color it should
// tag itself with for subsequent quiescent calls.
func (tp *threadpool) addWorker() Epoch {
	tp.latch.Lock()
	defer tp.latch.Unlock()

	tp.total++
	tp.oldThreads++
	return tp.color
}

// removeWorker unregisters an exiting worker thread, tagged with the color
// it was carrying at exit.
func (tp *threadpool) removeWorker(workerColor Epoch) {
	tp.latch.Lock()
	defer tp.latch.Unlock()

	tp.total--
	if workerColor == tp.color {
		tp.oldThreads--
		tp.maybeFlipLocked()
	}
}

// scheduleDeferred adds p to the current young-object list; its deferred
// deref will run once every worker present at destruction time has
// quiesced (spec.md §4.4).
func (tp *threadpool) scheduleDeferred(p *Port) {
	tp.latch.Lock()
	tp.youngObjects = append(tp.youngObjects, p)
	tp.latch.Unlock()
}

// quiescent is called by a worker thread, tagged with its current color,
// between messages. It returns the color the worker should carry from now
// on. If the worker's color still matches the threadpool's, this is its
// first quiescent point since the last flip: it flips, and the
// old-thread count drops, possibly triggering a generation flip.
func (tp *threadpool) quiescent(workerColor Epoch) Epoch {
	tp.latch.Lock()
	defer tp.latch.Unlock()

	if workerColor != tp.color {
		// Already quiesced this epoch.
		return workerColor
	}

	tp.oldThreads--
	tp.maybeFlipLocked()

	return workerColor.flip()
}

// maybeFlipLocked frees old_objects and flips generations once no worker
// can still be dereferencing a payload pointer into them. Caller must
// hold tp.latch, which is dropped (and reacquired) around the deferred
// derefs since those may invoke user callbacks.
func (tp *threadpool) maybeFlipLocked() {
	if tp.oldThreads > 0 {
		return
	}

	toFree := tp.oldObjects
	tp.oldObjects, tp.youngObjects = tp.youngObjects, nil
	tp.color = tp.color.flip()
	tp.oldThreads = tp.total

	tp.latch.Unlock()
	for _, p := range toFree {
		p.deref()
	}
	tp.latch.Lock()
}
