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

package vmem

import "github.com/ysos/ysos/internal/kernel/pid"

// Stack describes a process's single user stack as a contiguous page
// range [Start, End), placed deterministically at
// STACK_MAX - pid*STACK_MAX_SIZE so that fork's address translation is
// pure arithmetic.
type Stack struct {
	Start uint64
	End   uint64
}

// SlotTop returns the address one past the top of p's stack slot.
func SlotTop(p pid.PID) uint64 {
	return StackMax - uint64(p)*StackMaxSize
}

// SlotBase returns the lowest address of p's stack slot.
func SlotBase(p pid.PID) uint64 {
	return SlotTop(p) - StackMaxSize
}

// alignDown rounds addr down to the nearest page boundary.
func alignDown(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}

// NewStack maps the initial one-page stack for p: a single page at the top
// of the slot minus 8 bytes of red zone, and returns the Stack descriptor
// plus the initial RSP value (top - 8).
func NewStack(t *Table, p pid.PID) (Stack, uint64) {
	top := SlotTop(p)
	pageAddr := alignDown(top - 1)
	t.Map(pageAddr, UserWritable)
	return Stack{Start: pageAddr, End: pageAddr + PageSize}, top - 8
}

// Unmap releases every page in s from t. Called by Kill.
func (s Stack) Unmap(t *Table) {
	for addr := s.Start; addr < s.End; addr += PageSize {
		t.Unmap(addr)
	}
}

// PageCount returns the number of pages currently spanned by s.
func (s Stack) PageCount() int {
	return int((s.End - s.Start) / PageSize)
}

// GrowTo extends s downward so that addr falls inside it, mapping
// (slotTop-addr)/PageSize + 1 new pages with USER|WRITABLE|NX, and returns
// the updated Stack. Callers must have already verified addr lies within
// the PID's overall stack slot.
func GrowTo(t *Table, p pid.PID, s Stack, addr uint64) Stack {
	slotTop := SlotTop(p)
	wantPages := uint64((slotTop-addr)/PageSize) + 1
	wantStart := alignDown(slotTop - wantPages*PageSize)
	for a := wantStart; a < s.Start; a += PageSize {
		t.Map(a, UserWritable)
	}
	if wantStart < s.Start {
		s.Start = wantStart
	}
	return s
}

// InSlot reports whether addr lies strictly inside p's stack slot
// [slotTop-STACK_MAX_SIZE, slotTop).
func InSlot(p pid.PID, addr uint64) bool {
	top := SlotTop(p)
	base := top - StackMaxSize
	return addr > base && addr < top
}
