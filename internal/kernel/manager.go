// Package kernel implements the process manager, context switch,
// virtual-memory/stack allocator, syscall dispatcher, and semaphore
// service that make up the hardest part of this kernel's design: the
// process & concurrency subsystem. It is grounded on the teacher's
// pkg/sentry/kernel TaskSet (process table + ready queue + wait queues,
// mutated only under a single lock) and pkg/sentry/arch (register/trap
// frame context), adapted so that "hardware" is a goroutine standing in
// for the single logical CPU instead of real ring 3.
package kernel

import (
	"container/list"
	"fmt"
	"strings"
	"sync"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"

	"github.com/ysos/ysos/internal/kernel/elfload"
	"github.com/ysos/ysos/internal/kernel/pid"
	"github.com/ysos/ysos/internal/kernel/procctx"
	"github.com/ysos/ysos/internal/kernel/resource"
	"github.com/ysos/ysos/internal/kernel/semset"
	"github.com/ysos/ysos/internal/kernel/vmem"
)

// Manager owns the process table, the ready queue, and the per-target wait
// queues. Every public entry point that mutates this state takes mu,
// standing in for the real design's "without_interrupts" critical
// section — the spec calls for three separate primitives (an RWMutex over
// the table, a mutex over the ready queue, a mutex per wait queue), but
// since all manager mutation here is already serialized by a single
// logical CPU, one mutex covering all three avoids reintroducing the lock
// ordering the original precludes by being non-nested. See DESIGN.md.
type Manager struct {
	mu sync.Mutex

	table   map[pid.PID]*Process
	ready   *list.List // of pid.PID
	waiting map[pid.PID]map[pid.PID]struct{}

	current   pid.PID
	ticksLeft int

	alloc       *pid.Allocator
	kernelTable *vmem.Table

	sink  resource.ConsoleSink
	input resource.InputSource

	apps map[string][]byte // preloaded app name -> ELF image

	log *logrus.Logger
}

// New returns a Manager with PID 1 (the kernel) already installed as
// Running and no parent.
func New(sink resource.ConsoleSink, input resource.InputSource, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	kernelTable := vmem.NewKernelTable()
	m := &Manager{
		table:       make(map[pid.PID]*Process),
		ready:       list.New(),
		waiting:     make(map[pid.PID]map[pid.PID]struct{}),
		alloc:       pid.NewAllocator(),
		kernelTable: kernelTable,
		sink:        sink,
		input:       input,
		apps:        make(map[string][]byte),
		log:         log,
	}
	kern := &Process{
		PID:        pid.Kernel,
		Name:       "kernel",
		Status:     Running,
		PageTable:  kernelTable,
		Resources:  resource.NewSet(sink, input),
		Semaphores: semset.NewTable(),
		turn:       make(chan struct{}, 1),
	}
	m.table[pid.Kernel] = kern
	m.current = pid.Kernel
	m.ticksLeft = QuantumTicks
	return m
}

// RegisterApp makes name's ELF image available to syscall #2 (Spawn) until
// a filesystem is mounted, matching "immutable reference to the installed
// app list" in the process manager state.
func (m *Manager) RegisterApp(name string, elfImage []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[strings.ToLower(name)] = elfImage
}

// lookupLocked returns p's record or nil; callers must hold mu.
func (m *Manager) lookupLocked(p pid.PID) *Process {
	return m.table[p]
}

// pushReadyLocked appends p to the ready queue if it is not already there.
func (m *Manager) pushReadyLocked(p pid.PID) {
	for e := m.ready.Front(); e != nil; e = e.Next() {
		if e.Value.(pid.PID) == p {
			return
		}
	}
	m.ready.PushBack(p)
}

// popReadyLocked pops and returns the next ready PID, or false if empty.
func (m *Manager) popReadyLocked() (pid.PID, bool) {
	e := m.ready.Front()
	if e == nil {
		return 0, false
	}
	m.ready.Remove(e)
	return e.Value.(pid.PID), true
}

// Spawn allocates a PID, clones the kernel L4, loads elfImage into the new
// table marked user-accessible, allocates a one-page user stack, and
// initializes the context with RIP=entry, RSP=stack_top-8, RFLAGS.IF=1.
// The new process is inserted into the table and the ready queue.
func (m *Manager) Spawn(elfImage []byte, name string, parent pid.PID, program Program) (pid.PID, error) {
	img, err := elfload.Parse(elfImage)
	if err != nil {
		return 0, fmt.Errorf("kernel: spawn %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	newPID := m.alloc.Next()
	table := m.kernelTable.CloneL4()
	for _, seg := range img.Segments {
		page := table.Map(seg.VAddr, seg.Flags)
		copy(page.Data[:], seg.Data)
	}

	stack, rsp := vmem.NewStack(table, newPID)

	proc := &Process{
		PID:        newPID,
		Name:       strings.ToLower(name),
		ParentPID:  parent,
		Status:     Ready,
		PageTable:  table,
		Stack:      stack,
		Resources:  resource.NewSet(m.sink, m.input),
		Semaphores: m.semaphoresForLocked(parent),
		program:    program,
		turn:       make(chan struct{}, 1),
	}
	proc.Context.InitStackFrame(img.Entry, rsp)

	m.table[newPID] = proc
	if par := m.lookupLocked(parent); par != nil {
		par.Children = append(par.Children, newPID)
	}
	m.pushReadyLocked(newPID)

	if program != nil {
		m.startGoroutineLocked(proc)
	}
	return newPID, nil
}

// semaphoresForLocked returns the semaphore table a new top-level process
// should use: always a fresh one, whatever parent is — every process not
// created by fork starts its own family's semaphore table.
func (m *Manager) semaphoresForLocked(parent pid.PID) *semset.Table {
	return semset.NewTable()
}

// SpawnApp looks up name in the registered app list and spawns it,
// implementing syscall #2. Returns 0 if the app is unknown.
func (m *Manager) SpawnApp(name string, parent pid.PID, program Program) pid.PID {
	m.mu.Lock()
	img, ok := m.apps[strings.ToLower(name)]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	child, err := m.Spawn(img, name, parent, program)
	if err != nil {
		m.log.WithError(err).Warn("kernel: spawn app failed")
		return 0
	}
	return child
}

// Fork clones current's L4, allocates and byte-copies a fresh stack at the
// child's PID slot, and derives the child's context from the parent's by
// keeping the low 12 bits of RSP and substituting the high bits with the
// child's stack base. The child's RAX is set to 0; the parent's saved
// context RAX is set to the child's PID. Both become Ready. Callers are
// responsible for invoking SwitchNext afterward (per spec: "the caller
// then invokes switch_next").
func (m *Manager) Fork(current pid.PID, currentCtx procctx.Context) (childPID pid.PID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent := m.lookupLocked(current)
	if parent == nil || parent.Status == Dead {
		return 0, fmt.Errorf("kernel: fork: unknown or dead pid %d", current)
	}

	newPID := m.alloc.Next()

	parentBase := vmem.SlotBase(current)
	childBase := vmem.SlotBase(newPID)
	translate := childBase - parentBase

	childTable := parent.PageTable.Fork(translate)

	childCtx := currentCtx.Clone()
	childCtx.Frame.Rsp = (currentCtx.Frame.Rsp & 0xFFF) | ((currentCtx.Frame.Rsp &^ 0xFFF) + translate)
	childCtx.SetRax(0)

	childStack := vmem.Stack{
		Start: parent.Stack.Start + translate,
		End:   parent.Stack.End + translate,
	}

	child := &Process{
		PID:        newPID,
		Name:       parent.Name,
		ParentPID:  current,
		Status:     Ready,
		Context:    childCtx,
		PageTable:  childTable,
		Stack:      childStack,
		Resources:  resource.NewSet(m.sink, m.input),
		Semaphores: parent.Semaphores, // shared across the fork family
		program:    parent.program,
		turn:       make(chan struct{}, 1),
	}

	m.table[newPID] = child
	parent.Children = append(parent.Children, newPID)

	// save_current's half: copy the (possibly-modified) incoming context
	// into the parent's slot, mark it Ready, push to ready queue first —
	// parent runs next unless preempted.
	parent.Context = currentCtx
	parent.Context.SetRax(uint64(newPID))
	parent.Status = Ready
	m.pushReadyLocked(current)
	// add_proc's half: child is pushed second.
	m.pushReadyLocked(newPID)

	// Starting the child's goroutine is left to the caller (ProcAPI.Fork),
	// which decides what code the child actually runs — Go cannot resume
	// the parent's own goroutine at the fork() call site for the child the
	// way real fork() resumes the same instruction stream in both halves.

	return newPID, nil
}

// Kill marks pid Dead, unmaps and frees its stack pages, drops its
// resources, and wakes every waiter on pid with exit code ret. Unknown or
// already-Dead pids are a recoverable scheduler event (warn-log, return).
// Killing a Blocked process is forbidden (see SPEC_FULL.md Open Questions
// #1): it would otherwise leave a dangling entry in whichever wait set the
// process is blocked on.
func (m *Manager) Kill(target pid.PID, ret int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.killLocked(target, ret)
}

func (m *Manager) killLocked(target pid.PID, ret int32) error {
	p := m.lookupLocked(target)
	if p == nil || p.Status == Dead {
		m.log.WithField("pid", target).Warn("kernel: kill of unknown or dead pid")
		return nil
	}
	if p.Status == Blocked {
		return fmt.Errorf("kernel: kill: pid %d is blocked; forbidden, would orphan its wait-set entry", target)
	}

	p.Stack.Unmap(p.PageTable)
	p.Status = Dead
	ec := ret
	p.ExitCode = &ec
	p.Resources = nil

	waiters := m.waiting[target]
	delete(m.waiting, target)
	for w := range waiters {
		m.wakeUpLocked(w, uint64(ret))
	}
	return nil
}

// SaveCurrent copies ctx into current's context slot, increments its tick
// count, and marks it Ready, pushing it to the ready queue. No-op if
// current is Dead.
func (m *Manager) SaveCurrent(ctx procctx.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCurrentLocked(ctx)
}

func (m *Manager) saveCurrentLocked(ctx procctx.Context) {
	p := m.lookupLocked(m.current)
	if p == nil || p.Status == Dead {
		return
	}
	p.TicksPassed++
	p.Context = ctx
	p.Status = Ready
	m.pushReadyLocked(p.PID)
}

// SwitchNext pops PIDs from the ready queue until one whose status is
// Ready is found, marks it Running, makes it current, and returns it
// along with its saved context. No page table is loaded: the manager keeps
// no active-table state. Panics if the ready queue drains: a runnable
// process must always exist.
func (m *Manager) SwitchNext() (pid.PID, procctx.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switchNextLocked()
}

func (m *Manager) switchNextLocked() (pid.PID, procctx.Context) {
	for {
		next, ok := m.popReadyLocked()
		if !ok {
			panic("kernel: ready queue drained; no runnable process")
		}
		p := m.lookupLocked(next)
		if p == nil || p.Status != Ready {
			continue
		}
		p.Status = Running
		m.current = next
		return next, p.Context
	}
}

// Block marks pid Blocked. Callers must ensure pid is not also on the
// ready queue.
func (m *Manager) Block(target pid.PID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockLocked(target)
}

func (m *Manager) blockLocked(target pid.PID) {
	if p := m.lookupLocked(target); p != nil {
		p.Status = Blocked
	}
}

// WaitPid implements syscall #6. If target is already Dead its exit code
// is returned immediately. Otherwise the caller is recorded as waiting on
// target and blocked; the return value in that case is meaningless to the
// caller of WaitPid itself — the eventual wake-up (via Kill) supplies the
// real exit code through the scheduling layer's context restoration.
func (m *Manager) WaitPid(caller, target pid.PID) (exitCode int32, immediate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waitPidLocked(caller, target)
}

func (m *Manager) waitPidLocked(caller, target pid.PID) (exitCode int32, immediate bool) {
	if tp := m.lookupLocked(target); tp != nil && tp.Status == Dead {
		return *tp.ExitCode, true
	}

	if m.waiting[target] == nil {
		m.waiting[target] = make(map[pid.PID]struct{})
	}
	m.waiting[target][caller] = struct{}{}
	m.blockLocked(caller)
	return 0, false
}

// WakeUp marks pid Ready and pushes it to the ready queue, first setting
// its saved context's RAX to ret when hasRet is true, or to 0 otherwise.
// Idempotent if pid is already Ready (RAX is still set).
func (m *Manager) WakeUp(target pid.PID, ret uint64, hasRet bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hasRet {
		m.wakeUpLocked(target, ret)
	} else {
		m.wakeUpNoRetLocked(target)
	}
}

func (m *Manager) wakeUpLocked(target pid.PID, ret uint64) {
	p := m.lookupLocked(target)
	if p == nil || p.Status == Dead {
		return
	}
	p.Context.SetRax(ret)
	if p.Status == Ready {
		return
	}
	p.Status = Ready
	m.pushReadyLocked(target)
}

func (m *Manager) wakeUpNoRetLocked(target pid.PID) {
	p := m.lookupLocked(target)
	if p == nil || p.Status == Dead {
		return
	}
	p.Context.SetRax(0)
	if p.Status == Ready {
		return
	}
	p.Status = Ready
	m.pushReadyLocked(target)
}

// HandlePageFault grows the current process's stack if addr falls inside
// its stack slot, returning whether the fault was handled. Any other
// access is fatal to the faulting process only (a Process fault).
func (m *Manager) HandlePageFault(addr uint64, protectionViolation bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if protectionViolation {
		return false
	}
	p := m.lookupLocked(m.current)
	if p == nil {
		return false
	}
	if !vmem.InSlot(p.PID, addr) {
		return false
	}
	p.Stack = vmem.GrowTo(p.PageTable, p.PID, p.Stack, addr)
	return true
}

// Current returns the currently running PID.
func (m *Manager) Current() pid.PID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Snapshot returns an externally safe view of every process and the
// current ready-queue order, for the Stat syscall's listing (§6 "Process
// listing format"). Each entry's semaphore bookkeeping is run through
// deepcopy.Copy so the returned value shares no map with live kernel
// state even if a future caller mutates it.
func (m *Manager) Snapshot() ([]ProcessInfo, []pid.PID, pid.PID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	readyOrder := make([]pid.PID, 0, m.ready.Len())
	for e := m.ready.Front(); e != nil; e = e.Next() {
		readyOrder = append(readyOrder, e.Value.(pid.PID))
	}

	infos := make([]ProcessInfo, 0, len(m.table))
	for _, p := range m.table {
		var sems map[uint32][2]int
		if p.Semaphores != nil {
			raw := p.Semaphores.Snapshot()
			sems = deepcopy.Copy(raw).(map[uint32][2]int)
		}
		infos = append(infos, ProcessInfo{
			PID:         p.PID,
			PPID:        p.ParentPID,
			Name:        p.Name,
			TicksPassed: p.TicksPassed,
			Status:      p.Status,
			StackPages:  p.PageTable.UserPageCount(),
			Semaphores:  sems,
		})
	}
	return infos, readyOrder, m.current
}

// ProcessInfo is the externally safe view of a Process used by Stat.
type ProcessInfo struct {
	PID         pid.PID
	PPID        pid.PID
	Name        string
	TicksPassed uint64
	Status      Status
	StackPages  int
	Semaphores  map[uint32][2]int
}
