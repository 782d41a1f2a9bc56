package pid

import "testing"

func TestAllocatorMonotonic(t *testing.T) {
	a := NewAllocator()
	prev := a.Next()
	for i := 0; i < 100; i++ {
		next := a.Next()
		if next <= prev {
			t.Fatalf("allocator not monotonic: %d then %d", prev, next)
		}
		prev = next
	}
}

func TestAllocatorNeverReturnsKernel(t *testing.T) {
	a := NewAllocator()
	for i := 0; i < 100; i++ {
		if p := a.Next(); p == Kernel {
			t.Fatalf("allocator returned reserved kernel PID")
		}
	}
}
