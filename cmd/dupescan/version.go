package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

var (
	// Se fijan con -ldflags en el build de release
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

type versionCmd struct{}

func (*versionCmd) Name() string     { return "version" }
func (*versionCmd) Synopsis() string { return "Muestra la versión" }
func (*versionCmd) Usage() string {
	return `version:
  Muestra versión, commit y fecha de compilación.
`
}

func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Printf("dupescan %s\n", Version)
	fmt.Printf("commit: %s\n", Commit)
	fmt.Printf("built: %s\n", Date)
	return subcommands.ExitSuccess
}
