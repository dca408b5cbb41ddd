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

// Package freelist implements a slice-backed LIFO pool of reusable values,
// for callers on a hot path who already hold their own lock around the
// pool and don't want the cost of a second one (as sync.Pool imposes
// internally, along with its per-P shard churn and GC-driven eviction).
package freelist

// List is a free-list pool of *T values. It has no lock of its own: the
// caller is expected to already hold whatever lock protects the objects
// being pooled (spec.md §4.8's NotifySubscription/NotifyLink pools are
// reused under mainLatch, which the caller holds anyway for the list
// surgery around them).
//
// The zero value is an empty list.
type List struct {
	free []interface{}
}

// Get removes and returns the most recently Put value, or calls new and
// returns its result if the list is empty.
func (l *List) Get(new func() interface{}) interface{} {
	n := len(l.free)
	if n == 0 {
		return new()
	}
	v := l.free[n-1]
	l.free[n-1] = nil
	l.free = l.free[:n-1]
	return v
}

// Put returns v to the list for later reuse. The caller must have
// cleared any references v holds that should not outlive this Put (the
// list itself does nothing to reset v).
func (l *List) Put(v interface{}) {
	l.free = append(l.free, v)
}
