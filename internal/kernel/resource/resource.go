// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resource implements a process's file-descriptor table: a small
// indexed set of Console, File, or Null resources. The capability surface
// is trimmed to what this kernel's syscalls exercise (read, write,
// metadata) — no write-to-file, per the Non-goals.
package resource

import "errors"

// ErrBadFD is returned when a syscall references an fd that doesn't exist
// in the calling process's resource set.
var ErrBadFD = errors.New("resource: bad file descriptor")

// ConsoleStream identifies which of the three standard streams a Console
// resource represents.
type ConsoleStream int

const (
	Stdin ConsoleStream = iota
	Stdout
	Stderr
)

// File is the capability set a filesystem driver (out of scope; FAT16 is
// an external collaborator) must expose for Cat/ListApp/ListDir to work.
type File interface {
	Read(buf []byte) (int, error)
	Name() string
	Size() int64
}

// Kind tags which variant a Resource holds.
type Kind int

const (
	KindConsole Kind = iota
	KindFile
	KindNull
)

// Resource is a tagged variant: Console(stream) | File(handle) | Null.
type Resource struct {
	Kind    Kind
	Console ConsoleStream
	File    File
}

// NewConsole returns a Console-kind Resource for the given stream.
func NewConsole(s ConsoleStream) Resource { return Resource{Kind: KindConsole, Console: s} }

// NewFile returns a File-kind Resource wrapping f.
func NewFile(f File) Resource { return Resource{Kind: KindFile, File: f} }

// Null is the resource returned for fds beyond the initial 0/1/2 that have
// never been opened.
var Null = Resource{Kind: KindNull}

// ConsoleSink receives bytes written to stdout/stderr.
type ConsoleSink interface {
	Write(stream ConsoleStream, p []byte) (int, error)
}

// InputSource is drained (non-blockingly) by reads from stdin.
type InputSource interface {
	// PopInput returns the next buffered input byte, or ok=false if the
	// queue is currently empty.
	PopInput() (b byte, ok bool)
}

// Set is a process's fd table. fd 0/1/2 are populated at construction with
// Console(Stdin/Stdout/Stderr); further fds are assigned densely starting
// at 3.
type Set struct {
	fds   []Resource
	sink  ConsoleSink
	input InputSource
}

// NewSet returns a resource set with the three default console fds.
func NewSet(sink ConsoleSink, input InputSource) *Set {
	return &Set{
		fds:   []Resource{NewConsole(Stdin), NewConsole(Stdout), NewConsole(Stderr)},
		sink:  sink,
		input: input,
	}
}

// Open installs r at the next free fd and returns it.
func (s *Set) Open(r Resource) int {
	s.fds = append(s.fds, r)
	return len(s.fds) - 1
}

// Get returns the resource at fd.
func (s *Set) Get(fd int) (Resource, error) {
	if fd < 0 || fd >= len(s.fds) {
		return Resource{}, ErrBadFD
	}
	return s.fds[fd], nil
}

// Read implements syscall #0: reading from Stdin drains the input queue
// non-blockingly, returning 0 bytes when it's empty; reading from any other
// Console variant or a Null resource yields no data (None in the spec,
// surfaced here as 0, false); reading from File delegates to the handle.
func (s *Set) Read(fd int, buf []byte) (n int, ok bool, err error) {
	r, err := s.Get(fd)
	if err != nil {
		return 0, false, err
	}
	switch r.Kind {
	case KindConsole:
		if r.Console != Stdin {
			return 0, false, nil
		}
		n := 0
		for n < len(buf) {
			b, got := s.input.PopInput()
			if !got {
				break
			}
			buf[n] = b
			n++
		}
		return n, true, nil
	case KindFile:
		n, ferr := r.File.Read(buf)
		return n, true, ferr
	default:
		return 0, false, nil
	}
}

// Write implements syscall #1: Stdout/Stderr forward UTF-8 bytes to the
// console sink; File is unimplemented in this core (Non-goal: filesystem
// writes); Stdin and Null reject the write.
func (s *Set) Write(fd int, buf []byte) (int, error) {
	r, err := s.Get(fd)
	if err != nil {
		return 0, err
	}
	if r.Kind != KindConsole || r.Console == Stdin {
		return -1, ErrBadFD
	}
	return s.sink.Write(r.Console, buf)
}
