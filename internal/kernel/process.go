package kernel

import (
	"github.com/ysos/ysos/internal/kernel/pid"
	"github.com/ysos/ysos/internal/kernel/procctx"
	"github.com/ysos/ysos/internal/kernel/resource"
	"github.com/ysos/ysos/internal/kernel/semset"
	"github.com/ysos/ysos/internal/kernel/vmem"
)

// Process is a process record: identity, status, family, and every piece
// of per-process kernel state. ParentPID is stored instead of a strong
// pointer to the parent so that the process table (which owns Children as
// strong references) never forms a reference cycle, mirroring the
// original's Weak<Process> parent pointer.
type Process struct {
	PID      pid.PID
	Name     string
	ParentPID pid.PID // 0 means "no parent" (only ever true for Kernel)
	Children []pid.PID

	TicksPassed uint64
	Status      Status
	ExitCode    *int32

	Context    procctx.Context
	PageTable  *vmem.Table
	Stack      vmem.Stack
	Resources  *resource.Set
	Semaphores *semset.Table
	heap       heapAllocator

	// program and turn belong to the goroutine-scheduling layer (see
	// scheduler.go); the spec's data model has no equivalent, since real
	// hardware needs no cooperative handoff between processes.
	program Program
	turn    chan struct{}
	result  uint64
}

// hasParent reports whether p has a parent (false only for the kernel).
func (p *Process) hasParent() bool {
	return p.ParentPID != 0
}
