package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&scanCmd{}, "")
	subcommands.Register(&versionCmd{}, "")

	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(int(subcommands.ExitUsageError))
	}

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
