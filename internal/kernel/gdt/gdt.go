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

// Package gdt describes the kernel/user selectors, the TSS, and the four
// IST stacks this design calls for. None of it is installed into real
// hardware (there is no assembly trampoline to load in a Go process), but
// it is kept as data so the shape the spec requires — distinct IST
// indices, a ring-3 syscall gate — is testable and documented the way the
// teacher documents architecture constants that have no effect on the Go
// host (compare arch_amd64.go's maxAddr64/minGap64 block).
package gdt

// Selectors, matching the layout procctx assumes for user CS/SS.
const (
	KernelCodeSelector = 0x08
	KernelDataSelector = 0x10
	UserDataSelector   = 0x28 | 3
	UserCodeSelector   = 0x30 | 3
)

// IST stack index assignment. Each is a dedicated 4 KiB stack in the real
// design; here they are just distinguishing tags.
const (
	ISTDoubleFault = iota
	ISTPageFault
	ISTTimer
	ISTSyscall
)

// ISTStackSize is the size of each IST stack in the real design.
const ISTStackSize = 4096

// Gate describes one interrupt/trap gate.
type Gate struct {
	Vector uint8
	DPL    uint8 // descriptor privilege level required to invoke it
	IST    int
}

// Layout is the fully assembled GDT/IDT/IST configuration for this kernel.
type Layout struct {
	Gates []Gate
}

// DefaultLayout returns the gate table this kernel installs: DoubleFault,
// PageFault, and Timer at DPL 0, and the INT 0x80 syscall gate at DPL 3 so
// ring-3 code may invoke it, each on its own IST stack.
func DefaultLayout() Layout {
	return Layout{Gates: []Gate{
		{Vector: 0x08, DPL: 0, IST: ISTDoubleFault}, // #DF
		{Vector: 0x0E, DPL: 0, IST: ISTPageFault},   // #PF
		{Vector: 0x20, DPL: 0, IST: ISTTimer},        // IRQ0 / APIC timer
		{Vector: 0x80, DPL: 3, IST: ISTSyscall},      // INT 0x80
	}}
}
