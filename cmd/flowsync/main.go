// Command flowsync keeps a local workflow library in sync with a remote
// catalog.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/flowsync/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.Version = version
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
