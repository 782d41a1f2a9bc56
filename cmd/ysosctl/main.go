// Command ysosctl is the kernel's debug console: a thin CLI over the
// syscalls a running shell would otherwise issue interactively (ps, apps,
// cat, run), built for scripting the demo scenarios under examples/
// without a terminal attached. It mirrors runsc's subcommands-per-verb
// structure, one command per kernel capability instead of one per
// container-runtime verb.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/ysos/ysos/internal/config"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&psCommand{}, "")
	subcommands.Register(&appsCommand{}, "")
	subcommands.Register(&catCommand{}, "")
	subcommands.Register(&runCommand{}, "")

	confPath := flag.String("config", "", "path to a TOML config file (defaults built in if empty)")
	flag.Parse()

	log := logrus.New()
	cfg := config.Default()
	if *confPath != "" {
		loaded, err := config.Load(*confPath)
		if err != nil {
			log.WithError(err).Fatal("ysosctl: loading config")
		}
		cfg = loaded
	}

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx, &cfg, log)))
}
