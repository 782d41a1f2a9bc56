package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ysos/ysos/examples"
	"github.com/ysos/ysos/internal/console"
	"github.com/ysos/ysos/internal/kernel"
)

// runCommand implements subcommands.Command for "run": boot a kernel, fork
// the kernel process into one of the built-in demo scenarios, and block
// until it completes. This stands in for the shell's "run <app>" until a
// real filesystem and ELF-backed user binaries exist (Non-goal, per
// spec.md's external-collaborator boundary).
type runCommand struct {
	iters int
}

func (*runCommand) Name() string     { return "run" }
func (*runCommand) Synopsis() string { return "run a built-in demo scenario to completion" }
func (*runCommand) Usage() string {
	return "run <counter|dining|producer-consumer|fish> - run a demo scenario\n"
}

func (r *runCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&r.iters, "n", 100, "iteration count, meaning depends on the scenario")
}

func (r *runCommand) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	_, log := ysosctlArgs(args)
	con := console.New(os.Stdout, log)
	m := kernel.New(con, con, log)

	var program kernel.Program
	switch f.Arg(0) {
	case "counter":
		program = examples.CounterScenario(examples.UseSemaphore, 8, r.iters)
	case "dining":
		program = examples.DiningPhilosophersScenario(5, r.iters)
	case "producer-consumer":
		program = examples.ProducerConsumerScenario(8, 8, r.iters, 16)
	case "fish":
		program = examples.FishScenario(3 * r.iters)
	default:
		fmt.Fprintf(os.Stderr, "run: unknown scenario %q\n", f.Arg(0))
		return subcommands.ExitFailure
	}

	api := m.KernelAPI()
	child := api.Fork(program)
	code := api.WaitPid(child)
	fmt.Fprintf(os.Stdout, "%s exit with code %d\n", f.Arg(0), code)
	return subcommands.ExitSuccess
}
