// Copyright 2018 The gVisor Authors.
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

// Package pid provides the kernel's process identifier source.
package pid

import (
	"fmt"
	"sync/atomic"
)

// PID is a 16-bit process identifier.
type PID uint16

// Kernel is the reserved identifier of the kernel's own pseudo-process. It
// has no parent and is Running from boot.
const Kernel PID = 1

// Allocator hands out monotonically increasing PIDs starting after Kernel.
// It never reuses a PID.
type Allocator struct {
	next atomic.Uint32
}

// NewAllocator returns an Allocator whose first Next() call returns
// Kernel+1.
func NewAllocator() *Allocator {
	a := &Allocator{}
	a.next.Store(uint32(Kernel))
	return a
}

// Next returns the next unused PID.
//
// Next panics if the 16-bit PID space is exhausted; none of the scenarios
// this kernel is built for run long enough to hit that, and silently
// wrapping would violate the "PID never reused" invariant.
func (a *Allocator) Next() PID {
	v := a.next.Add(1)
	if v > uint32(^PID(0)) {
		panic(fmt.Sprintf("pid: allocator exhausted the 16-bit pid space at %d", v))
	}
	return PID(v)
}
