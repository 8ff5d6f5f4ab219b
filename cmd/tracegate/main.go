// Command tracegate analyzes agent run traces and gates telemetry changes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tracegate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
