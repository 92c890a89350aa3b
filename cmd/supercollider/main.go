// Command supercollider runs collision scenarios through the parallel
// collision pipeline and stores their traces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/supercollider/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
