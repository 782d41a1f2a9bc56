package kernel

import (
	"runtime"

	"github.com/ysos/ysos/internal/kernel/pid"
)

// QuantumTicks bounds how many syscalls a process may make before the
// scheduler forces a reschedule, standing in for the APIC timer's periodic
// preemption (divide=1, count=0x20000 in the real design). Preemption
// cannot fire mid-instruction in a goroutine the way it fires on real
// hardware, so this simulation treats every syscall as the checkpoint a
// pending timer tick is delivered at — see SPEC_FULL.md and DESIGN.md.
const QuantumTicks = 4

// Program is the code a process runs: a plain Go function holding a
// ProcAPI bound to its own PID. It stands in for a loaded ELF image's
// entry point, since there is no ring-3 execution to hand off to in this
// simulation.
type Program func(api *ProcAPI)

// ProcAPI is the syscall surface exposed to a running Program, matching
// the INT 0x80 ABI in spirit (one call in, one value out) while letting
// buffer-carrying calls take ordinary Go slices instead of raw
// CR3-relative pointers — this kernel has no addressable physical memory
// for Go code to dereference. See DESIGN.md.
type ProcAPI struct {
	mgr *Manager
	pid pid.PID
}

// PID returns the calling process's own identifier.
func (api *ProcAPI) PID() pid.PID { return api.pid }

// KernelAPI returns a ProcAPI bound to the kernel process (PID 1) for the
// caller's own goroutine — there is no separate goroutine backing PID 1
// the way startGoroutineLocked backs every other process, since the
// caller's goroutine (whatever drives Manager, e.g. cmd/ysosctl's main)
// plays that role directly. Used to bootstrap the first user process via
// an ordinary Fork+WaitPid instead of bypassing the scheduler.
func (m *Manager) KernelAPI() *ProcAPI {
	return &ProcAPI{mgr: m, pid: pid.Kernel}
}

// startGoroutineLocked launches the goroutine that will run p's program
// once the scheduler releases its turn for the first time. Callers must
// hold mu.
func (m *Manager) startGoroutineLocked(p *Process) {
	prog := p.program
	target := p.PID
	go func() {
		<-p.turn
		api := &ProcAPI{mgr: m, pid: target}
		prog(api)
		api.Exit(0)
	}()
}

// releaseLocked hands the CPU to p by signalling its turn channel.
// Callers must hold mu.
func (m *Manager) releaseLocked(p pid.PID) {
	proc := m.lookupLocked(p)
	if proc == nil {
		return
	}
	select {
	case proc.turn <- struct{}{}:
	default:
	}
}

// syscallOp is what a specific syscall number contributes to the generic
// dispatch loop: its immediate return value, whether it already moved the
// caller off Running (forcing a reschedule regardless of the quantum
// countdown), and whether the caller process has exited and must never be
// scheduled again.
type syscallOp struct {
	result      uint64
	forceSwitch bool
	exited      bool
}

// runSyscallLocked performs the scheduling side of every syscall: given
// the op the syscall body already produced under the lock, it applies the
// quantum countdown,
// and — if a reschedule is needed — pops and releases the next process.
// Callers must hold mu and must not re-enter runSyscallLocked reentrantly.
func (m *Manager) runSyscallLocked(caller pid.PID, op syscallOp) (mustPark bool) {
	p := m.lookupLocked(caller)
	if p == nil {
		return false
	}
	if op.exited {
		return false // goroutine is ending; nothing to park.
	}

	force := op.forceSwitch
	if !force {
		p.Context.SetRax(op.result)
		m.ticksLeft--
		if m.ticksLeft <= 0 {
			m.saveCurrentLocked(p.Context)
			force = true
		}
	}
	if !force {
		return false
	}
	next, _ := m.switchNextLocked()
	m.ticksLeft = QuantumTicks
	m.releaseLocked(next)
	return true
}

// doSyscall is the common entry/exit sequence every ProcAPI method funnels
// through: run op under the lock, then — if the caller was moved off the
// CPU — release the lock and park the calling goroutine on its own turn
// channel until the scheduler gives it the CPU again, finally reading back
// whatever return value its context now carries.
func (m *Manager) doSyscall(caller pid.PID, compute func() syscallOp) uint64 {
	m.mu.Lock()
	op := compute()
	mustPark := m.runSyscallLocked(caller, op)
	m.mu.Unlock()

	if op.exited {
		runtime.Goexit()
	}
	if !mustPark {
		return op.result
	}

	p := m.processForPark(caller)
	<-p.turn
	m.mu.Lock()
	ret := p.Context.Regs.Rax
	m.mu.Unlock()
	return ret
}

// processForPark fetches the Process record under lock; used only for the
// post-unlock park handshake above.
func (m *Manager) processForPark(p pid.PID) *Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupLocked(p)
}
