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

package netsock

import (
	"os"
	"sync"

	fallocate "github.com/detailyang/go-fallocate"
)

// Spool is a fixed-size on-disk overflow area for a TunnelDevice's
// transmit queue. original_source/pfinet/tunnel.c simply drops a packet
// once its in-memory xq is full; Spool gives a translator the option of
// writing the overflow to preallocated disk space instead, so a burst of
// traffic doesn't lose packets outright while the external reader catches
// up.
type Spool struct {
	mu   sync.Mutex
	file *os.File
	size int64
	used int64
}

// NewSpool creates (or truncates) path and preallocates size bytes for
// it up front, so writes under load never pay for on-demand block
// allocation.
func NewSpool(path string, size int64) (*Spool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	if err := fallocate.Fallocate(f, 0, size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &Spool{file: f, size: size}, nil
}

// Write appends payload to the spool, returning false without
// writing if doing so would exceed the preallocated size (the spool
// overflows by dropping, the same as tunnel.c's xq).
func (s *Spool) Write(payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.used+int64(len(payload)) > s.size {
		return false, nil
	}
	n, err := s.file.WriteAt(payload, s.used)
	if err != nil {
		return false, err
	}
	s.used += int64(n)
	return true, nil
}

// Used reports how many bytes of the preallocated spool are occupied.
func (s *Spool) Used() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Close releases the spool's backing file.
func (s *Spool) Close() error {
	return s.file.Close()
}
