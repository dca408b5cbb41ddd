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

// Package netsock is a pfinet-like networking translator built on top of
// github.com/hurd-go/ports: socket and socket-address ports, a small
// forwarding table, and a handful of device stand-ins (loopback, tunnel,
// dummy). TCP/UDP/IP protocol processing itself is out of scope (see the
// original spec's non-goals); only the port traffic and device/FIB shape
// pfinet exposes to clients is modeled.
package netsock
