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

// Package vmem simulates the per-process L4 page table and the per-PID user
// stack slot layout described in the kernel's virtual memory design. There
// is no physical MMU backing this: each mapped page is a plain Go byte
// slice, and "CR3" is just the pointer to the active Table kept by the
// process manager. The address arithmetic (stack slot placement, growth
// sizing) is exact so that fork's RSP translation and the page-fault
// handler's growth math match the real design bit-for-bit.
package vmem

import (
	"golang.org/x/sys/unix"
)

// PageSize is the page granularity used throughout the kernel.
const PageSize = 4096

// Layout constants from the virtual address layout table.
const (
	// StackMax is the top of the user address region reserved for stacks.
	StackMax uint64 = 0x0000_4000_0000_0000
	// StackMaxSize is the size of a single PID's stack slot.
	StackMaxSize uint64 = 0x1_0000_0000
	// KernelHalfStart is the first address of the shared physical-memory
	// direct map; every process table aliases entries at or above this
	// address from the kernel's table.
	KernelHalfStart uint64 = 0xFFFF_8000_0000_0000
)

// PageFlags mirrors the x86-64 page-table entry bits this kernel cares
// about. The Prot field reuses golang.org/x/sys/unix's mmap protection
// constants as the vocabulary for "what this page may be used for",
// matching how a real entry's U/W/NX bits are interpreted by the CPU.
type PageFlags struct {
	Prot int // unix.PROT_READ | PROT_WRITE | PROT_EXEC
	User bool
}

// UserWritable is the flag combination used for user stack and data pages:
// USER_ACCESSIBLE | WRITABLE | NO_EXECUTE.
var UserWritable = PageFlags{Prot: unix.PROT_READ | unix.PROT_WRITE, User: true}

// UserExecutable is used for loaded text segments: USER_ACCESSIBLE, no
// WRITABLE, executable.
var UserExecutable = PageFlags{Prot: unix.PROT_READ | unix.PROT_EXEC, User: true}

// UserReadOnly is used for loaded rodata segments.
var UserReadOnly = PageFlags{Prot: unix.PROT_READ, User: true}

// Page is one mapped page: its flags and its backing bytes.
type Page struct {
	Flags PageFlags
	Data  [PageSize]byte
}

// Table is a per-process page-table context: an L4 root owning a set of
// user-space page mappings plus a shared view of the kernel half-space.
type Table struct {
	// kernel is shared, read-only, identical across every process's
	// Table (clone_l4 "shares kernel mappings verbatim").
	kernel map[uint64]*Page
	// user holds this process's private mappings.
	user map[uint64]*Page
}

// NewKernelTable creates the one kernel table that every process's Table
// clones its kernel half from.
func NewKernelTable() *Table {
	return &Table{kernel: make(map[uint64]*Page), user: make(map[uint64]*Page)}
}

// CloneL4 returns a new Table sharing t's kernel mappings and starting with
// an empty user half. Used at spawn.
func (t *Table) CloneL4() *Table {
	return &Table{kernel: t.kernel, user: make(map[uint64]*Page)}
}

// Fork returns a new Table sharing the kernel half and deep-copying every
// user page (stack and any loaded segments) from t, remapping each copy at
// addr+translate. The caller passes the same slot-to-slot displacement it
// uses to translate the child's saved RSP and Stack range, so the copied
// pages land exactly where the child's Process claims its stack lives.
// The entire stack is eagerly copied; there is no copy-on-write (Non-goal).
func (t *Table) Fork(translate uint64) *Table {
	nt := &Table{kernel: t.kernel, user: make(map[uint64]*Page, len(t.user))}
	for addr, p := range t.user {
		cp := &Page{Flags: p.Flags}
		cp.Data = p.Data
		nt.user[addr+translate] = cp
	}
	return nt
}

// Map installs a page with the given flags at the page-aligned address
// addr, replacing any existing user mapping there.
func (t *Table) Map(addr uint64, flags PageFlags) *Page {
	p := &Page{Flags: flags}
	if addr >= KernelHalfStart {
		t.kernel[addr] = p
	} else {
		t.user[addr] = p
	}
	return p
}

// Unmap removes the user mapping at addr, if any.
func (t *Table) Unmap(addr uint64) {
	delete(t.user, addr)
}

// Lookup returns the page mapped at addr, checking the user half first and
// falling back to the shared kernel half.
func (t *Table) Lookup(addr uint64) (*Page, bool) {
	if p, ok := t.user[addr]; ok {
		return p, true
	}
	p, ok := t.kernel[addr]
	return p, ok
}

// UserPageCount reports how many user-half pages are currently mapped
// (used for the process listing's StackPages column).
func (t *Table) UserPageCount() int {
	return len(t.user)
}
