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

// Package ports implements a capability-object runtime for Mach-style
// translators: it maps kernel receive rights to reference-counted server
// objects, serializes RPCs against inhibition/quiescence, dispatches
// messages on single- or multi-threaded workers, and delivers lifecycle
// notifications (no-senders, dead-name).
//
// The primary elements of interest are:
//
//   - Class and Bucket, which group ports by cleanup/inhibition semantics
//     and by shared polling set, respectively.
//
//   - CreatePort and ImportPort, which bring a Port into existence.
//
//   - BeginRPC/EndRPC, which admit and retire in-progress RPCs against the
//     inhibition gates described in Inhibit*RPCs.
//
//   - ServeSingleThreaded and ServeMultiThreaded, the two demuxer loops.
//
// Concrete Mach IPC is abstracted behind the Kernel interface; see
// internal/machshim for an in-process stand-in used by this package's own
// tests.
package ports
