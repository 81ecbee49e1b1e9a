package main

import (
	"github.com/spf13/cobra"

	"github.com/cbie/core/internal/appinit"
)

// buildApp wires the collaborator graph for one CLI invocation from the
// persistent --data-dir/--in-memory flags. Every subcommand's RunE
// calls this first, mirroring the teacher's per-command root/json flag
// reads in cmd/floop.
func buildApp(cmd *cobra.Command) (*appinit.App, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	inMemory, _ := cmd.Flags().GetBool("in-memory")
	return appinit.Build(appinit.Options{DataDir: dataDir, UseMemoryStore: inMemory})
}
