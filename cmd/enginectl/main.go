// Command enginectl is the operator CLI for the graph execution engine:
// serve runs the HTTP server, migrate versions the Postgres schema, run
// fires a one-shot ProcessNodes invocation for debugging a canvas outside
// the HTTP surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "enginectl",
		Short: "Operate the graph execution engine",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newRunCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
