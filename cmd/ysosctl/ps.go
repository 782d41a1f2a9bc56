package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/ysos/ysos/internal/config"
	"github.com/ysos/ysos/internal/console"
	"github.com/ysos/ysos/internal/kernel"
)

// psCommand implements subcommands.Command for "ps": boot a bare kernel
// (no apps registered, nothing spawned) and print its process table, which
// at that point holds only the kernel process itself — useful for
// sanity-checking the boot path without a real UEFI loader.
type psCommand struct{}

func (*psCommand) Name() string           { return "ps" }
func (*psCommand) Synopsis() string       { return "print the kernel's process table" }
func (*psCommand) Usage() string          { return "ps - print the kernel's process table\n" }
func (*psCommand) SetFlags(*flag.FlagSet) {}

func (*psCommand) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	_, log := ysosctlArgs(args)
	con := console.New(os.Stdout, log)
	m := kernel.New(con, con, log)

	infos, ready, current := m.Snapshot()
	fmt.Fprintln(os.Stdout, "PID\tPPID\tName\tTicks\tStatus\tStackPages")
	for _, pi := range infos {
		fmt.Fprintf(os.Stdout, "%d\t%d\t%s\t%d\t%s\t%d\n",
			pi.PID, pi.PPID, pi.Name, pi.TicksPassed, pi.Status, pi.StackPages)
	}
	fmt.Fprintf(os.Stdout, "ready: %v\ncurrent: %d\n", ready, current)
	return subcommands.ExitSuccess
}

// ysosctlArgs unpacks the (*config.Config, *logrus.Logger) pair every
// ysosctl command receives from main's subcommands.Execute call.
func ysosctlArgs(args []interface{}) (*config.Config, *logrus.Logger) {
	cfg, _ := args[0].(*config.Config)
	log, _ := args[1].(*logrus.Logger)
	return cfg, log
}
