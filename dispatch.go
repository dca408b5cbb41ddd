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

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// DemuxFunc is the user-supplied per-message handler: given a message
// admitted as an RPC (ctx is cancelled if the RPC is interrupted), it
// handles msg and reports whether it recognized the message ID. A
// DemuxFunc must not retain msg past its return.
type DemuxFunc func(ctx context.Context, msg *IncomingMessage) bool

// UnhandledFunc is invoked for a message the dispatcher could not admit
// (dead port, unknown target) or that DemuxFunc didn't recognize. Both
// server loops produce a default reply in this situation (spec.md
// §4.10, "MIG_BAD_ID"); UnhandledFunc is where that reply is written,
// since the wire reply format itself is outside this package's scope
// (spec.md §1).
type UnhandledFunc func(msg *IncomingMessage)

// ServeSingleThreaded runs the caller's own goroutine as the sole
// dispatcher for bucket: receive a message, look up its target (payload
// fast path, name fallback), admit it with BeginRPC, run demux, retire
// it with EndRPC, and call quiescent on the bucket's threadpool before
// looping (spec.md §4.10).
//
// It never derives an inactivity deadline of its own from ctx: the spec
// notes the single-threaded loop's inactivity timeout "has been
// configured in practice to never time out, to avoid losing late
// requests" (spec.md §4.10, §9), so this implementation simply omits it
// rather than modeling a timeout that is always disabled. ServeSingleThreaded
// returns nil when ctx is cancelled, or a wrapped ExternalIPC error if
// the portset's Receive fails for any other reason.
func ServeSingleThreaded(ctx context.Context, bucket *Bucket, demux DemuxFunc, onUnhandled UnhandledFunc) error {
	color := bucket.threadpool.addWorker()
	defer bucket.threadpool.removeWorker(color)

	for {
		msg, err := bucket.portset.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return newErr("ServeSingleThreaded", ExternalIPC, err)
		}

		serveOne(ctx, bucket, msg, demux, onUnhandled)
		color = bucket.threadpool.quiescent(color)
	}
}

// serveOne runs the lookup/begin_rpc/demux/end_rpc sequence for one
// received message, shared by both server loops.
func serveOne(ctx context.Context, bucket *Bucket, msg *IncomingMessage, demux DemuxFunc, onUnhandled UnhandledFunc) {
	p, err := Lookup(msg.Target, nil, bucket)
	if err != nil {
		if onUnhandled != nil {
			onUnhandled(msg)
		}
		return
	}
	defer p.deref()

	t, err := BeginRPC(ctx, p, msg.ID, msg.SeqNo)
	if err != nil {
		if onUnhandled != nil {
			onUnhandled(msg)
		}
		return
	}
	defer EndRPC(t)

	if msg.ID == InterruptOperationID {
		InterruptOperation(p, msg.SeqNo)
		return
	}

	if !demux(t.Context(), msg) {
		if onUnhandled != nil {
			onUnhandled(msg)
		}
	}
}

// MultiThreadedOptions configures ServeMultiThreaded.
type MultiThreadedOptions struct {
	// IdleTimeout bounds how long a non-master worker waits for a
	// message before exiting. Zero means workers never exit on
	// inactivity (only when ctx is cancelled).
	IdleTimeout time.Duration

	// DepressPriority enables the brief scheduling-priority depression
	// newly spawned workers apply to themselves (spec.md §4.10).
	DepressPriority bool
}

// ServeMultiThreaded runs a dynamically sized pool of worker goroutines
// dispatching messages for bucket. One master worker is spawned
// immediately and never exits on idle; every other worker is spawned
// the moment the last currently-idle worker picks up a message, so the
// bucket is never left with zero readers momentarily. Each worker runs
// the same per-message logic as ServeSingleThreaded (spec.md §4.10).
//
// ServeMultiThreaded blocks until every worker has exited, then returns
// nil. Workers exit when ctx is cancelled, and also (the master included)
// when Receive fails with an error other than an idle timeout.
func ServeMultiThreaded(ctx context.Context, bucket *Bucket, demux DemuxFunc, onUnhandled UnhandledFunc, opts MultiThreadedOptions) error {
	var wg sync.WaitGroup
	var workerCount int32
	var idleWorkers int32

	var spawn func(isMaster bool)
	spawn = func(isMaster bool) {
		atomic.AddInt32(&workerCount, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, bucket, demux, onUnhandled, opts, isMaster, &workerCount, &idleWorkers, spawn)
		}()
	}

	spawn(true)
	wg.Wait()
	return nil
}

func runWorker(ctx context.Context, bucket *Bucket, demux DemuxFunc, onUnhandled UnhandledFunc, opts MultiThreadedOptions, isMaster bool, workerCount, idleWorkers *int32, spawn func(bool)) {
	defer atomic.AddInt32(workerCount, -1)

	if opts.DepressPriority {
		restore := depressPriority(atomic.LoadInt32(workerCount))
		defer restore()
	}

	color := bucket.threadpool.addWorker()
	defer bucket.threadpool.removeWorker(color)

	for {
		atomic.AddInt32(idleWorkers, 1)

		recvCtx := ctx
		var cancel context.CancelFunc
		if !isMaster && opts.IdleTimeout > 0 {
			recvCtx, cancel = context.WithTimeout(ctx, opts.IdleTimeout)
		}

		msg, err := bucket.portset.Receive(recvCtx)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			atomic.AddInt32(idleWorkers, -1)
			if ctx.Err() != nil {
				return
			}
			if !isMaster && recvCtx.Err() != nil {
				return // idle timeout: this worker exits, the master remains
			}
			debugf("ServeMultiThreaded: Receive: %v", err)
			return
		}

		if left := atomic.AddInt32(idleWorkers, -1); left == 0 {
			spawn(false)
		}

		serveOne(ctx, bucket, msg, demux, onUnhandled)
	}
}

// depressPriority lowers the calling OS thread's scheduling priority,
// proportional to the current worker count, to reduce starvation when a
// burst of messages spawns many workers at once (spec.md §4.10). It
// returns a function that restores the previous priority.
//
// Go does not give a goroutine a stable 1:1 relationship with an OS
// thread, so this necessarily depresses the whole process's niceness
// transiently rather than one thread's; failures are logged and
// otherwise ignored; this is best-effort scheduling hygiene, not a
// correctness requirement.
func depressPriority(workerCount int32) func() {
	const which = unix.PRIO_PROCESS

	prev, err := unix.Getpriority(which, 0)
	if err != nil {
		debugf("depressPriority: Getpriority: %v", err)
		return func() {}
	}
	// Getpriority returns priority+1 on Linux/Darwin for historical reasons.
	prev--

	depression := int(workerCount)
	if depression > 10 {
		depression = 10
	}

	if err := unix.Setpriority(which, 0, prev+depression); err != nil {
		debugf("depressPriority: Setpriority: %v", err)
		return func() {}
	}

	return func() {
		if err := unix.Setpriority(which, 0, prev); err != nil {
			debugf("depressPriority: restore Setpriority: %v", err)
		}
	}
}
