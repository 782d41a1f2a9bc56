package kernel

import (
	"fmt"
	"strings"
	"time"

	"github.com/ysos/ysos/internal/kernel/pid"
	"github.com/ysos/ysos/internal/kernel/procctx"
	"github.com/ysos/ysos/internal/kernel/semset"
)

// Syscall numbers, per the syscall dispatcher table.
const (
	SysRead = iota
	SysWrite
	SysSpawn
	SysGetPid
	SysFork
	SysExit
	SysWaitPid
	SysStat
	SysListApp
	SysCat
	SysTime
	SysSem
	SysAllocate
	SysDeallocate
)

// Sem sub-operations for syscall #11.
const (
	SemNew = iota
	SemRemove
	SemWait
	SemSignal
)

// Read implements syscall #0.
func (api *ProcAPI) Read(fd int, buf []byte) int64 {
	var n int
	var ok bool
	var err error
	ret := api.mgr.doSyscall(api.pid, func() syscallOp {
		p := api.mgr.lookupLocked(api.pid)
		n, ok, err = p.Resources.Read(fd, buf)
		if err != nil || !ok {
			return syscallOp{result: ^uint64(0)}
		}
		return syscallOp{result: uint64(n)}
	})
	if err != nil {
		return -1
	}
	return int64(ret)
}

// Write implements syscall #1.
func (api *ProcAPI) Write(fd int, buf []byte) int64 {
	var err error
	ret := api.mgr.doSyscall(api.pid, func() syscallOp {
		p := api.mgr.lookupLocked(api.pid)
		n, werr := p.Resources.Write(fd, buf)
		err = werr
		if werr != nil {
			return syscallOp{result: ^uint64(0)}
		}
		return syscallOp{result: uint64(n)}
	})
	if err != nil {
		return -1
	}
	return int64(ret)
}

// Spawn implements syscall #2: look up name in the registered app list and
// spawn it. Returns 0 if unknown.
func (api *ProcAPI) Spawn(name string) pid.PID {
	ret := api.mgr.doSyscall(api.pid, func() syscallOp {
		child := api.mgr.spawnAppLocked(name, api.pid)
		return syscallOp{result: uint64(child)}
	})
	return pid.PID(ret)
}

// spawnAppLocked is the under-lock body of Spawn. Manager.Spawn takes mu
// itself, so this releases the caller's lock around that call and
// re-acquires it before returning.
func (m *Manager) spawnAppLocked(name string, parent pid.PID) pid.PID {
	img, ok := m.apps[strings.ToLower(name)]
	if !ok {
		return 0
	}
	m.mu.Unlock()
	child, err := m.Spawn(img, name, parent, nil)
	m.mu.Lock()
	if err != nil {
		m.log.WithError(err).Warn("kernel: spawn app failed")
		return 0
	}
	return child
}

// GetPid implements syscall #3.
func (api *ProcAPI) GetPid() pid.PID {
	return api.pid
}

// Fork implements syscall #4. child is the Go-idiomatic rendition of
// "the child resumes execution at the fork() call site": since Go has no
// mechanism to literally duplicate a goroutine's call stack, the caller
// supplies explicitly what the child process runs next, exactly as a C
// program would branch on fork()'s return value — see SPEC_FULL.md.
func (api *ProcAPI) Fork(child Program) pid.PID {
	ret := api.mgr.doSyscall(api.pid, func() syscallOp {
		ctx := api.mgr.contextOf(api.pid)
		api.mgr.mu.Unlock()
		childPID, err := api.mgr.Fork(api.pid, ctx)
		api.mgr.mu.Lock()
		if err != nil {
			api.mgr.log.WithError(err).Warn("kernel: fork failed")
			return syscallOp{result: 0}
		}
		childProc := api.mgr.lookupLocked(childPID)
		if child != nil {
			childProc.program = child
		}
		api.mgr.startGoroutineLocked(childProc)
		// fork always yields, per spec: "the caller then invokes
		// switch_next".
		return syscallOp{forceSwitch: true, result: uint64(childPID)}
	})
	return pid.PID(ret)
}

// contextOf returns pid's current saved context. Callers must hold mu.
func (m *Manager) contextOf(p pid.PID) procctx.Context {
	proc := m.lookupLocked(p)
	if proc == nil {
		return procctx.Context{}
	}
	return proc.Context
}

// Exit implements syscall #5: kills the caller and schedules the next
// process. It never returns.
func (api *ProcAPI) Exit(code int32) {
	api.mgr.doSyscall(api.pid, func() syscallOp {
		if err := api.mgr.killLocked(api.pid, code); err != nil {
			api.mgr.log.WithError(err).Error("kernel: exit of blocked process")
		}
		next, _ := api.mgr.switchNextLocked()
		api.mgr.releaseLocked(next)
		return syscallOp{exited: true}
	})
}

// WaitPid implements syscall #6.
func (api *ProcAPI) WaitPid(target pid.PID) int32 {
	ret := api.mgr.doSyscall(api.pid, func() syscallOp {
		code, immediate := api.mgr.waitPidLocked(api.pid, target)
		if immediate {
			return syscallOp{result: uint64(uint32(code))}
		}
		return syscallOp{forceSwitch: true}
	})
	return int32(uint32(ret))
}

// Stat implements syscall #7: returns the process list in the format
// described in spec.md §6, formatted as the kernel would print it to
// stdout.
func (api *ProcAPI) Stat() string {
	infos, ready, current := api.mgr.Snapshot()
	var b strings.Builder
	fmt.Fprintln(&b, "PID\tPPID\tName\tTicks\tStatus\tStackPages")
	for _, pi := range infos {
		fmt.Fprintf(&b, "%d\t%d\t%s\t%d\t%s\t%d\n", pi.PID, pi.PPID, pi.Name, pi.TicksPassed, pi.Status, pi.StackPages)
	}
	fmt.Fprintf(&b, "ready: %v\n", ready)
	fmt.Fprintf(&b, "current: %d\n", current)
	return b.String()
}

// ListApp implements syscall #8 for the registered app list (ListDir over
// a mounted filesystem is delegated to the resource set's File capability,
// out of scope here).
func (api *ProcAPI) ListApp() []string {
	api.mgr.mu.Lock()
	defer api.mgr.mu.Unlock()
	names := make([]string, 0, len(api.mgr.apps))
	for name := range api.mgr.apps {
		names = append(names, name)
	}
	return names
}

// Cat implements syscall #9: stream a file to stdout via the resource
// set's File capability. Returns the number of bytes written, or -1.
func (api *ProcAPI) Cat(f interface {
	Read([]byte) (int, error)
}) int64 {
	total := int64(0)
	buf := make([]byte, 512)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			w := api.Write(1, buf[:n])
			if w < 0 {
				return -1
			}
			total += w
		}
		if err != nil {
			break
		}
	}
	return total
}

// Time implements syscall #10. Time units are microseconds
// (nanoseconds/1000) — the Open Question in spec.md §9 resolved this way;
// see DESIGN.md.
func (api *ProcAPI) Time() uint64 {
	return uint64(time.Now().UnixNano() / 1000)
}

// SemNew implements the "new" sub-operation of syscall #11.
func (api *ProcAPI) SemNew(key uint32, init int64) bool {
	var ok bool
	api.mgr.doSyscall(api.pid, func() syscallOp {
		p := api.mgr.lookupLocked(api.pid)
		ok = p.Semaphores.New(key, init)
		return syscallOp{result: boolToU64(ok)}
	})
	return ok
}

// SemRemove implements the "remove" sub-operation of syscall #11.
func (api *ProcAPI) SemRemove(key uint32) bool {
	var ok bool
	api.mgr.doSyscall(api.pid, func() syscallOp {
		p := api.mgr.lookupLocked(api.pid)
		ok = p.Semaphores.Remove(key)
		return syscallOp{result: boolToU64(ok)}
	})
	return ok
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// SemWait implements the "wait" sub-operation of syscall #11: on Block,
// the dispatcher marks the caller Blocked and switches to the next
// process, exactly as §4.6 specifies.
func (api *ProcAPI) SemWait(key uint32) {
	api.mgr.doSyscall(api.pid, func() syscallOp {
		p := api.mgr.lookupLocked(api.pid)
		switch p.Semaphores.Wait(key, api.pid) {
		case semset.Ok:
			return syscallOp{result: 0}
		case semset.Block:
			api.mgr.saveCurrentLocked(p.Context)
			api.mgr.blockLocked(api.pid)
			return syscallOp{forceSwitch: true}
		default: // NotExist
			return syscallOp{result: ^uint64(0)}
		}
	})
}

// SemSignal implements the "signal" sub-operation of syscall #11: on
// WakeUp, wake_up(pid, None) is invoked so the waiter's RAX is cleared to
// 0 by set_rax, per §4.6.
func (api *ProcAPI) SemSignal(key uint32) {
	api.mgr.doSyscall(api.pid, func() syscallOp {
		p := api.mgr.lookupLocked(api.pid)
		res, woken := p.Semaphores.Signal(key)
		if res == semset.WakeUp {
			api.mgr.wakeUpNoRetLocked(woken)
		}
		return syscallOp{result: 0}
	})
}

// Allocate implements syscall #12: a simple per-process bump allocator.
// Returns a nonzero pseudo-pointer, or 0 on failure.
func (api *ProcAPI) Allocate(size, align uint64) uint64 {
	return api.mgr.doSyscall(api.pid, func() syscallOp {
		p := api.mgr.lookupLocked(api.pid)
		return syscallOp{result: p.heap.Allocate(size, align)}
	})
}

// Deallocate implements syscall #13.
func (api *ProcAPI) Deallocate(ptr, size uint64) {
	api.mgr.doSyscall(api.pid, func() syscallOp {
		p := api.mgr.lookupLocked(api.pid)
		p.heap.Deallocate(ptr, size)
		return syscallOp{result: 0}
	})
}
