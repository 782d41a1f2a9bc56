package vmem

import (
	"testing"

	"github.com/ysos/ysos/internal/kernel/pid"
)

func TestSlotsDontOverlap(t *testing.T) {
	base1 := SlotBase(pid.PID(1))
	top1 := SlotTop(pid.PID(1))
	base2 := SlotBase(pid.PID(2))
	top2 := SlotTop(pid.PID(2))
	if top2 != base1 {
		t.Fatalf("slot 2 [%#x,%#x) should end exactly where slot 1 [%#x,%#x) begins", base2, top2, base1, top1)
	}
}

func TestForkCopiesStackBytes(t *testing.T) {
	kernel := NewKernelTable()
	parent := kernel.CloneL4()
	stack, _ := NewStack(parent, pid.PID(2))

	page, ok := parent.Lookup(stack.Start)
	if !ok {
		t.Fatal("expected stack page to be mapped")
	}
	page.Data[0] = 0xAB
	page.Data[PageSize-1] = 0xCD

	child := parent.Fork(0)
	childPage, ok := child.Lookup(stack.Start)
	if !ok {
		t.Fatal("fork did not copy the stack mapping")
	}
	if childPage.Data[0] != 0xAB || childPage.Data[PageSize-1] != 0xCD {
		t.Fatalf("fork did not byte-copy stack contents: got %x/%x", childPage.Data[0], childPage.Data[PageSize-1])
	}

	// Mutating the child's copy must not affect the parent's (no COW, no aliasing).
	childPage.Data[0] = 0xFF
	if page.Data[0] != 0xAB {
		t.Fatal("fork aliased the parent's stack page instead of copying it")
	}
}

func TestForkTranslatesAddresses(t *testing.T) {
	kernel := NewKernelTable()
	parent := kernel.CloneL4()
	stack, _ := NewStack(parent, pid.PID(2))
	page, _ := parent.Lookup(stack.Start)
	page.Data[0] = 0x42

	translate := SlotBase(pid.PID(3)) - SlotBase(pid.PID(2))
	child := parent.Fork(translate)

	if _, ok := child.Lookup(stack.Start); ok {
		t.Fatal("translated fork must not leave a copy at the parent's untranslated address")
	}
	childPage, ok := child.Lookup(stack.Start + translate)
	if !ok {
		t.Fatal("translated fork did not place the copy at the translated address")
	}
	if childPage.Data[0] != 0x42 {
		t.Fatalf("translated fork lost stack contents: got %x", childPage.Data[0])
	}
}

func TestCloneL4SharesKernelHalf(t *testing.T) {
	kernel := NewKernelTable()
	kernel.Map(KernelHalfStart, UserReadOnly)

	t1 := kernel.CloneL4()
	t2 := kernel.CloneL4()

	p1, ok := t1.Lookup(KernelHalfStart)
	if !ok {
		t.Fatal("expected cloned table to see kernel-half mapping")
	}
	p2, _ := t2.Lookup(KernelHalfStart)
	if p1 != p2 {
		t.Fatal("expected both clones to share the identical kernel-half page")
	}
}

func TestGrowToExtendsDownward(t *testing.T) {
	kernel := NewKernelTable()
	table := kernel.CloneL4()
	stack, _ := NewStack(table, pid.PID(3))
	if stack.PageCount() != 1 {
		t.Fatalf("expected a fresh stack to have 1 page, got %d", stack.PageCount())
	}

	faultAddr := stack.Start - 3*PageSize
	grown := GrowTo(table, pid.PID(3), stack, faultAddr)
	if grown.PageCount() != 5 {
		t.Fatalf("expected growth to cover (slotTop-addr)/PageSize+1 = 5 pages, got %d", grown.PageCount())
	}
	if !InSlot(pid.PID(3), faultAddr) {
		t.Fatal("fault address should be reported inside the pid's slot")
	}
}

func TestInSlotRejectsOutOfRange(t *testing.T) {
	if InSlot(pid.PID(1), SlotTop(pid.PID(1))) {
		t.Fatal("slot top itself is exclusive and must not be in-slot")
	}
	if InSlot(pid.PID(1), SlotBase(pid.PID(1))) {
		t.Fatal("slot base itself is exclusive and must not be in-slot")
	}
}
