// Copyright 2023 The gVisor Authors.
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

// Package semset implements the kernel's per-family keyed semaphore table,
// grounded on the teacher's pkg/sentry/kernel/shm package — a
// context-keyed, reference-counted resource table shared by a process and
// its descendants. Here the keyed resource is a sleeping counting
// semaphore instead of a shared-memory segment, but the sharing model is
// the same: one *Table pointer is copied across fork so an entire process
// family synchronizes over it.
package semset

import (
	"sync"

	"github.com/ysos/ysos/internal/kernel/pid"
)

// Result is the outcome of Wait or Signal.
type Result int

const (
	// Ok means the operation completed immediately.
	Ok Result = iota
	// Block means the caller must be descheduled; the PID has been
	// recorded as a waiter.
	Block
	// WakeUp carries the PID that Signal just unblocked.
	WakeUp
	// NotExist means the key was not found.
	NotExist
)

// semaphore is a single counting semaphore with a FIFO waiter list.
type semaphore struct {
	count   int64
	waiters []pid.PID
}

// Table is a keyed set of semaphores, shared (via a plain pointer, since
// Go's GC is the reference count) across every process in a fork family.
type Table struct {
	mu   sync.Mutex
	sems map[uint32]*semaphore
}

// NewTable returns an empty semaphore table.
func NewTable() *Table {
	return &Table{sems: make(map[uint32]*semaphore)}
}

// New inserts a semaphore at key with the given initial count. Returns
// false (idempotent-false) if key already exists.
func (t *Table) New(key uint32, init int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sems[key]; ok {
		return false
	}
	t.sems[key] = &semaphore{count: init}
	return true
}

// Remove deletes the semaphore at key. It has no effect on any waiters
// already recorded against it — callers must drain the wait set first, per
// spec. Returns whether key was present.
func (t *Table) Remove(key uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sems[key]; !ok {
		return false
	}
	delete(t.sems, key)
	return true
}

// Wait attempts to acquire the semaphore at key for p. If the count is
// positive it is decremented and Ok is returned. Otherwise p is appended
// to the waiter list and Block is returned. NotExist if key is absent.
func (t *Table) Wait(key uint32, p pid.PID) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sems[key]
	if !ok {
		return NotExist
	}
	if s.count > 0 {
		s.count--
		return Ok
	}
	s.waiters = append(s.waiters, p)
	return Block
}

// Signal wakes the oldest waiter on key if any, otherwise increments the
// count. NotExist if key is absent. When Result is WakeUp, woken carries
// the PID to resume.
func (t *Table) Signal(key uint32) (res Result, woken pid.PID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sems[key]
	if !ok {
		return NotExist, 0
	}
	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		return WakeUp, w
	}
	s.count++
	return Ok, 0
}

// Snapshot returns a defensive copy of the current (count, waiter count)
// for every key, for use by the Stat syscall's process listing.
func (t *Table) Snapshot() map[uint32][2]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uint32][2]int, len(t.sems))
	for k, s := range t.sems {
		out[k] = [2]int{int(s.count), len(s.waiters)}
	}
	return out
}
