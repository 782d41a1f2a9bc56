package kernel

import (
	"strings"
	"testing"
)

func TestProcAPIWriteForwardsAndSpendsOneTick(t *testing.T) {
	m := New(discardSink{}, emptyInput{}, nil)
	p := newTestProcess(m)
	m.current = p.PID
	before := m.ticksLeft

	api := &ProcAPI{mgr: m, pid: p.PID}
	n := api.Write(1, []byte("hi"))

	if n != 2 {
		t.Fatalf("expected Write to report 2 bytes written, got %d", n)
	}
	if m.ticksLeft != before-1 {
		t.Fatalf("expected a syscall to spend one tick, got ticksLeft=%d (was %d)", m.ticksLeft, before)
	}
	if p.Status != Running {
		t.Fatalf("expected the caller to remain Running within its quantum, got %v", p.Status)
	}
}

func TestProcAPIWriteToStdinIsRejected(t *testing.T) {
	m := New(discardSink{}, emptyInput{}, nil)
	p := newTestProcess(m)
	m.current = p.PID

	api := &ProcAPI{mgr: m, pid: p.PID}
	if n := api.Write(0, []byte("x")); n != -1 {
		t.Fatalf("expected writing to fd 0 to fail, got %d", n)
	}
}

func TestProcAPISemNewRejectsDuplicateKey(t *testing.T) {
	m := New(discardSink{}, emptyInput{}, nil)
	p := newTestProcess(m)
	m.current = p.PID
	api := &ProcAPI{mgr: m, pid: p.PID}

	if !api.SemNew(1, 1) {
		t.Fatal("expected the first SemNew on a fresh key to succeed")
	}
	if api.SemNew(1, 1) {
		t.Fatal("expected a duplicate SemNew on the same key to fail")
	}
	if !api.SemRemove(1) {
		t.Fatal("expected SemRemove to report success on an existing key")
	}
	if api.SemRemove(1) {
		t.Fatal("expected a second SemRemove on the same key to fail")
	}
}

func TestProcAPIStatFormatsProcessTable(t *testing.T) {
	m := New(discardSink{}, emptyInput{}, nil)
	p := newTestProcess(m)
	m.current = p.PID
	api := &ProcAPI{mgr: m, pid: p.PID}

	out := api.Stat()
	if !strings.Contains(out, "PID\tPPID\tName\tTicks\tStatus\tStackPages") {
		t.Fatalf("expected a header row, got %q", out)
	}
	if !strings.Contains(out, p.Name) {
		t.Fatalf("expected the process's own name to be listed, got %q", out)
	}
	if !strings.Contains(out, "current: ") {
		t.Fatalf("expected a trailing current-pid line, got %q", out)
	}
}

func TestProcAPIAllocateDeallocateRoundTrip(t *testing.T) {
	m := New(discardSink{}, emptyInput{}, nil)
	p := newTestProcess(m)
	m.current = p.PID
	api := &ProcAPI{mgr: m, pid: p.PID}

	ptr := api.Allocate(32, 8)
	if ptr == 0 {
		t.Fatal("expected a nonzero pointer from a satisfiable allocation")
	}
	api.Deallocate(ptr, 32)
}

func TestProcAPIListAppReportsRegistered(t *testing.T) {
	m := New(discardSink{}, emptyInput{}, nil)
	m.RegisterApp("shell", []byte{0x7f, 'E', 'L', 'F'})
	p := newTestProcess(m)
	m.current = p.PID
	api := &ProcAPI{mgr: m, pid: p.PID}

	apps := api.ListApp()
	found := false
	for _, name := range apps {
		if name == "shell" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected \"shell\" in the registered app list, got %v", apps)
	}
}
