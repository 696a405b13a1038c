// Command relgate gates and publishes library releases.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/relgate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
