package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// catCommand implements subcommands.Command for "cat": stream a host file
// to stdout, standing in for syscall #9 until a real FAT16-backed
// filesystem exists (Non-goal, per spec.md's external-collaborator
// boundary) — this just proves out the host-side half of the contract
// (File.Read/Name/Size) that a real driver would satisfy.
type catCommand struct{}

func (*catCommand) Name() string           { return "cat" }
func (*catCommand) Synopsis() string       { return "print a host file, standing in for syscall #9 (Cat)" }
func (*catCommand) Usage() string          { return "cat <path> - print a file\n" }
func (*catCommand) SetFlags(*flag.FlagSet) {}

func (*catCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	b, err := os.ReadFile(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "cat: %v\n", err)
		return subcommands.ExitFailure
	}
	os.Stdout.Write(b)
	return subcommands.ExitSuccess
}
