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

// Package procctx holds the saved register file and interrupt stack frame
// that make up a process's context, mirroring arch.Context64 in the
// teacher's sentry/arch package but trimmed to exactly the fields the
// kernel's process manager and syscall dispatcher need.
package procctx

// Registers is the full integer register file captured at interrupt entry.
type Registers struct {
	R15, R14, R13, R12 uint64
	R11, R10, R9, R8   uint64
	Rbp, Rdi, Rsi      uint64
	Rdx, Rcx, Rbx, Rax uint64
}

// TrapFrame is the CPU-pushed interrupt stack frame.
type TrapFrame struct {
	Rip    uint64
	Cs     uint64
	Rflags uint64
	Rsp    uint64
	Ss     uint64
}

const rflagsIF = 1 << 9

// User code/data selectors and RPL, matching internal/kernel/gdt.Layout.
const (
	userCodeSelector = 0x30 | 3
	userDataSelector = 0x28 | 3
)

// Context is the aggregate process context: the register file plus the
// trap frame.
type Context struct {
	Regs  Registers
	Frame TrapFrame
}

// InitStackFrame sets up a freshly spawned or forked process's initial
// context: RIP=entryIP, RSP=stackTop, user CS/SS, RFLAGS with IF=1.
func (c *Context) InitStackFrame(entryIP, stackTop uint64) {
	c.Frame = TrapFrame{
		Rip:    entryIP,
		Cs:     userCodeSelector,
		Rflags: rflagsIF,
		Rsp:    stackTop,
		Ss:     userDataSelector,
	}
}

// Save copies registers and frame from an incoming snapshot into c.
func (c *Context) Save(src *Context) {
	c.Regs = src.Regs
	c.Frame = src.Frame
}

// Restore copies c's registers and frame out to dst. It does not switch
// page tables, and nothing in this kernel stands in for the CR3 reload
// that accompanies a restore on real hardware.
func (c *Context) Restore(dst *Context) {
	dst.Regs = c.Regs
	dst.Frame = c.Frame
}

// SetRax overwrites only the return-value register.
func (c *Context) SetRax(v uint64) {
	c.Regs.Rax = v
}

// Clone returns a value copy of c, used by fork before the RSP translation
// and RAX=0 adjustment are applied to the copy.
func (c *Context) Clone() Context {
	return *c
}
