// Package elfload parses the ELF image a process is spawned from and
// describes the segments the process manager must map into the new
// process's page table. This is the one ambient concern resolved onto the
// standard library rather than a pack dependency — see DESIGN.md.
package elfload

import (
	"bytes"
	"debug/elf"
	"fmt"

	"github.com/ysos/ysos/internal/kernel/vmem"
)

// Segment is one loadable ELF segment, ready to be mapped into a process's
// user address space.
type Segment struct {
	VAddr uint64
	Data  []byte
	Flags vmem.PageFlags
}

// Image is a parsed ELF executable: its entry point and loadable segments.
type Image struct {
	Entry    uint64
	Segments []Segment
}

// Parse reads an ELF executable from raw and returns its entry point and
// loadable (PT_LOAD) segments, each tagged with the page flags its ELF
// permission bits imply.
func Parse(raw []byte) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("elfload: parse: %w", err)
	}
	defer f.Close()

	img := &Image{Entry: f.Entry}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Memsz)
		raw, err := progData(prog)
		if err != nil {
			return nil, fmt.Errorf("elfload: segment at %#x: %w", prog.Vaddr, err)
		}
		copy(data, raw)

		flags := vmem.UserReadOnly
		switch {
		case prog.Flags&elf.PF_W != 0:
			flags = vmem.UserWritable
		case prog.Flags&elf.PF_X != 0:
			flags = vmem.UserExecutable
		}
		img.Segments = append(img.Segments, Segment{VAddr: prog.Vaddr, Data: data, Flags: flags})
	}
	return img, nil
}

func progData(prog *elf.Prog) ([]byte, error) {
	buf := make([]byte, prog.Filesz)
	if _, err := prog.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}
