package semset

import (
	"testing"

	"github.com/ysos/ysos/internal/kernel/pid"
)

func TestWaitSignalRoundTrip(t *testing.T) {
	tbl := NewTable()
	if !tbl.New(1, 1) {
		t.Fatal("expected New to succeed on a fresh key")
	}
	if tbl.New(1, 1) {
		t.Fatal("expected New to fail on a duplicate key")
	}

	if res := tbl.Wait(1, pid.PID(2)); res != Ok {
		t.Fatalf("expected Ok acquiring a count-1 semaphore, got %v", res)
	}
	if res := tbl.Wait(1, pid.PID(3)); res != Block {
		t.Fatalf("expected Block on an exhausted semaphore, got %v", res)
	}

	res, woken := tbl.Signal(1)
	if res != WakeUp || woken != pid.PID(3) {
		t.Fatalf("expected Signal to wake the blocked waiter 3, got %v/%v", res, woken)
	}
}

func TestCountPlusWaitersInvariant(t *testing.T) {
	tbl := NewTable()
	tbl.New(5, 0)

	for p := pid.PID(10); p < 15; p++ {
		if res := tbl.Wait(5, p); res != Block {
			t.Fatalf("expected every waiter on a count-0 semaphore to block, got %v for pid %d", res, p)
		}
	}
	snap := tbl.Snapshot()
	count, waiters := snap[5][0], snap[5][1]
	if count+waiters != 5 {
		t.Fatalf("count+waiters invariant violated: count=%d waiters=%d", count, waiters)
	}

	for i := 0; i < 5; i++ {
		res, _ := tbl.Signal(5)
		if res != WakeUp {
			t.Fatalf("expected signal %d to wake a waiter, got %v", i, res)
		}
	}
	snap = tbl.Snapshot()
	count, waiters = snap[5][0], snap[5][1]
	if count != 0 || waiters != 0 {
		t.Fatalf("expected a fully-drained semaphore, got count=%d waiters=%d", count, waiters)
	}
}

func TestUnknownKey(t *testing.T) {
	tbl := NewTable()
	if res := tbl.Wait(99, pid.PID(1)); res != NotExist {
		t.Fatalf("expected NotExist for an unknown key, got %v", res)
	}
	if res, _ := tbl.Signal(99); res != NotExist {
		t.Fatalf("expected NotExist signaling an unknown key, got %v", res)
	}
	if tbl.Remove(99) {
		t.Fatal("expected Remove to report false for an unknown key")
	}
}
