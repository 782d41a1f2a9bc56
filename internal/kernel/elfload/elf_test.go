package elfload

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ysos/ysos/internal/kernel/vmem"
)

// buildMinimalELF64 hand-assembles the smallest valid little-endian ELF64
// executable with a single PT_LOAD segment, since the pack carries no ELF
// fixture and Parse is only exercised against real loader output in
// production.
func buildMinimalELF64(vaddr uint64, flags uint32, payload []byte) []byte {
	const (
		ehdrSize = 64
		phdrSize = 56
	)
	phoff := uint64(ehdrSize)
	dataOff := ehdrSize + phdrSize

	var buf bytes.Buffer
	// e_ident
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	buf.Write(make([]byte, 8)) // padding

	le := binary.LittleEndian
	u16 := func(v uint16) { binary.Write(&buf, le, v) }
	u32 := func(v uint32) { binary.Write(&buf, le, v) }
	u64 := func(v uint64) { binary.Write(&buf, le, v) }

	u16(2)      // e_type = ET_EXEC
	u16(0x3e)   // e_machine = EM_X86_64
	u32(1)      // e_version
	u64(vaddr)  // e_entry
	u64(phoff)  // e_phoff
	u64(0)      // e_shoff
	u32(0)      // e_flags
	u16(ehdrSize)
	u16(phdrSize)
	u16(1) // e_phnum
	u16(0) // e_shentsize
	u16(0) // e_shnum
	u16(0) // e_shstrndx

	// program header
	u32(1)                   // p_type = PT_LOAD
	u32(flags)                // p_flags
	u64(uint64(dataOff))      // p_offset
	u64(vaddr)                // p_vaddr
	u64(vaddr)                // p_paddr
	u64(uint64(len(payload))) // p_filesz
	u64(uint64(len(payload))) // p_memsz
	u64(0x1000)               // p_align

	buf.Write(payload)
	return buf.Bytes()
}

func TestParseExecutableSegment(t *testing.T) {
	const PF_X, PF_R = 1, 4
	payload := []byte{0x90, 0x90, 0xc3} // nop; nop; ret
	raw := buildMinimalELF64(0x400000, PF_R|PF_X, payload)

	img, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed on a well-formed image: %v", err)
	}
	if img.Entry != 0x400000 {
		t.Fatalf("expected entry 0x400000, got %#x", img.Entry)
	}
	if len(img.Segments) != 1 {
		t.Fatalf("expected exactly one PT_LOAD segment, got %d", len(img.Segments))
	}
	seg := img.Segments[0]
	if seg.VAddr != 0x400000 {
		t.Fatalf("unexpected segment vaddr %#x", seg.VAddr)
	}
	if !bytes.Equal(seg.Data, payload) {
		t.Fatalf("segment data mismatch: got %x want %x", seg.Data, payload)
	}
	if seg.Flags != vmem.UserExecutable {
		t.Fatalf("expected executable flags for an R|X segment, got %+v", seg.Flags)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not an elf file")); err == nil {
		t.Fatal("expected an error parsing non-ELF bytes")
	}
}
