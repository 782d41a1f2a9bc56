package resource

import "testing"

type fakeSink struct {
	writes []string
}

func (f *fakeSink) Write(stream ConsoleStream, p []byte) (int, error) {
	f.writes = append(f.writes, string(p))
	return len(p), nil
}

type fakeInput struct {
	bytes []byte
}

func (f *fakeInput) PopInput() (byte, bool) {
	if len(f.bytes) == 0 {
		return 0, false
	}
	b := f.bytes[0]
	f.bytes = f.bytes[1:]
	return b, true
}

func TestStdinReadDrainsInput(t *testing.T) {
	in := &fakeInput{bytes: []byte("hi")}
	s := NewSet(&fakeSink{}, in)

	buf := make([]byte, 8)
	n, ok, err := s.Read(0, buf)
	if err != nil || !ok {
		t.Fatalf("unexpected read failure: ok=%v err=%v", ok, err)
	}
	if n != 2 || string(buf[:n]) != "hi" {
		t.Fatalf("expected to read \"hi\", got %q", buf[:n])
	}

	n, ok, err = s.Read(0, buf)
	if err != nil || !ok || n != 0 {
		t.Fatalf("expected empty-but-ok read once drained, got n=%d ok=%v err=%v", n, ok, err)
	}
}

func TestWriteForwardsToSink(t *testing.T) {
	sink := &fakeSink{}
	s := NewSet(sink, &fakeInput{})

	if _, err := s.Write(1, []byte("out")); err != nil {
		t.Fatalf("write to stdout failed: %v", err)
	}
	if _, err := s.Write(0, []byte("x")); err != ErrBadFD {
		t.Fatalf("expected ErrBadFD writing to stdin, got %v", err)
	}
	if len(sink.writes) != 1 || sink.writes[0] != "out" {
		t.Fatalf("unexpected sink contents: %v", sink.writes)
	}
}

func TestGetBadFD(t *testing.T) {
	s := NewSet(&fakeSink{}, &fakeInput{})
	if _, err := s.Get(99); err != ErrBadFD {
		t.Fatalf("expected ErrBadFD for an unopened fd, got %v", err)
	}
}

func TestOpenAssignsDenseFD(t *testing.T) {
	s := NewSet(&fakeSink{}, &fakeInput{})
	fd := s.Open(Null)
	if fd != 3 {
		t.Fatalf("expected first opened fd to be 3 (after stdin/stdout/stderr), got %d", fd)
	}
}
