// Command launchpad runs multi-phase token sale campaigns against a
// replayable action log.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/launchpad/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
