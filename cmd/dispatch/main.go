// dispatch is the Dispatch command-line client and server launcher.
package main

import (
	"os"

	"github.com/dispatch-cms/dispatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
