// Command dittomds runs the dittomds metadata server.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/dittomds/cmd/dittomds/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
