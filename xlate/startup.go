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

	"github.com/hurd-go/ports"
)

// Bootstrapper hands a freshly created control port's send right to
// whatever started the translator and reports the underlying node it
// should sit on top of, standing in for the fsys_startup RPC
// (original_source/libtrivfs/startup.c). The concrete transport used to
// reach the bootstrap port is out of scope here (spec.md §1); only the
// shape of the handshake is modeled.
type Bootstrapper interface {
	Startup(ctx context.Context, controlSendRight ports.PortName, flags int32) (underlying ports.PortName, err error)
}

// Startup creates a control port and, if bootstrap is non-nil, performs
// the fsys_startup handshake against it, recording the returned
// underlying node on the control (original_source/libtrivfs/startup.c's
// trivfs_startup). A nil bootstrap leaves Underlying unset, for
// translators started without a parent filesystem to report back to.
func Startup(ctx context.Context, kernel ports.Kernel, controlClass *ports.Class, controlBucket *ports.Bucket, protidClass *ports.Class, protidBucket *ports.Bucket, fs FSOps, bootstrap Bootstrapper, flags int32) (*Control, error) {
	c, err := NewControl(ctx, kernel, controlClass, controlBucket, protidClass, protidBucket, fs, ports.Invalid)
	if err != nil {
		return nil, err
	}

	if bootstrap == nil {
		return c, nil
	}

	sendRight, err := ports.GetRight(c.Port)
	if err != nil {
		return nil, err
	}

	underlying, err := bootstrap.Startup(ctx, sendRight, flags)
	if err != nil {
		return nil, err
	}
	c.SetUnderlying(underlying)
	return c, nil
}
