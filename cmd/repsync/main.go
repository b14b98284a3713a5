// Command repsync drives a workout routine backend with optimistic updates.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/repsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "repsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
