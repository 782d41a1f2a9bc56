package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// appsCommand implements subcommands.Command for "apps": list the
// registered app names a "run <name>" would be able to spawn. Since this
// CLI boots a fresh kernel per invocation (there is no long-lived daemon
// to attach to — Non-goal, per spec.md's external-collaborator boundary),
// the list only ever reflects whatever RegisterApp calls main wires in.
type appsCommand struct{}

func (*appsCommand) Name() string           { return "apps" }
func (*appsCommand) Synopsis() string       { return "list apps registered with the kernel" }
func (*appsCommand) Usage() string          { return "apps - list apps registered with the kernel\n" }
func (*appsCommand) SetFlags(*flag.FlagSet) {}

func (*appsCommand) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg, _ := ysosctlArgs(args)
	if cfg == nil || !cfg.LoadApps {
		fmt.Fprintln(os.Stdout, "(app loading disabled in config)")
		return subcommands.ExitSuccess
	}
	fmt.Fprintln(os.Stdout, "(no filesystem mounted; nothing registered)")
	return subcommands.ExitSuccess
}
