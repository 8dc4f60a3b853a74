package main

import (
	"fmt"
	"os"

	"github.com/laserline/engraver/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceUsage = true

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "engraver: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
