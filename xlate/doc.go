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

// Package xlate is minimal translator scaffolding built on top of
// github.com/hurd-go/ports: a control port representing the running
// translator, a protid port representing one client's open of it, and
// a message-ID dispatch table in the style of a MiG-generated demuxer.
//
// It plays the role of libtrivfs for a translator that wants the
// bookkeeping (control/protid lifecycle, options, goaway) without any
// particular filesystem shape layered on top, the same way fuseutil
// gives a FUSE server its op-dispatch loop without prescribing a
// filesystem.
package xlate
