// Command cbie is the CLI for the Core Behavior Identification Engine:
// it drives the same C1-C8 analysis pipeline the MCP server exposes,
// for local operation, scripting, and backup/restore maintenance.
// Grounded on the teacher's cmd/floop/main.go cobra tree shape (one
// newXxxCmd() per subcommand, persistent --root/--json flags).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cbie",
		Short: "Core Behavior Identification Engine",
		Long: `cbie turns per-user behavior observations into a ranked profile of
behavior clusters, tiered PRIMARY/SECONDARY/NOISE, with a best-effort
archetype summary.

It runs the score -> embed -> cluster -> aggregate -> classify ->
archetype -> assemble pipeline and serves the same correction command
surface (delete-observation, hide-cluster, pause, export, ...) over
both this CLI and the MCP server ('cbie serve').`,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory for the SQLite store and audit log (default ~/.cbie/data)")
	rootCmd.PersistentFlags().Bool("in-memory", false, "Use an in-memory store instead of SQLite (testing/demo only)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newAnalyzeCmd(),
		newDeleteObservationCmd(),
		newReportObservationCmd(),
		newHideClusterCmd(),
		newUnhideClusterCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newExportCmd(),
		newDeleteProfileCmd(),
		newCancelDeleteProfileCmd(),
		newReapDeletionsCmd(),
		newConfigCmd(),
		newBackupCmd(),
		newRestoreCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
