// Package main is the entry point for tasklist.
package main

import (
	"context"
	"os"

	"github.com/dshills/tasklist/internal/cli"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.Version, cli.Commit, cli.Date = version, commit, date
	return cli.Execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
