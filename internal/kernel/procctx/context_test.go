package procctx

import "testing"

func TestInitStackFrame(t *testing.T) {
	var c Context
	c.InitStackFrame(0x1000, 0x7fff0000)
	if c.Frame.Rip != 0x1000 || c.Frame.Rsp != 0x7fff0000 {
		t.Fatalf("unexpected frame: %+v", c.Frame)
	}
	if c.Frame.Rflags&rflagsIF == 0 {
		t.Fatal("expected interrupts-enabled flag to be set")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	var c Context
	c.SetRax(42)
	clone := c.Clone()
	clone.SetRax(7)
	if c.Regs.Rax != 42 {
		t.Fatal("mutating the clone mutated the original")
	}
	if clone.Regs.Rax != 7 {
		t.Fatal("clone did not take the new value")
	}
}

func TestSetRaxOnlyTouchesRax(t *testing.T) {
	var c Context
	c.Regs.Rbx = 99
	c.SetRax(1)
	if c.Regs.Rbx != 99 {
		t.Fatal("SetRax must not disturb other registers")
	}
}
