// Commands for the correction surface that mutates Observation state or
// Profile.Settings directly (spec.md §4.7 C8): delete-observation,
// report-observation, hide-cluster, unhide-cluster, pause, resume.
// Grouped in one file the way the teacher groups its curation commands
// (forget/deprecate/restore/merge) in cmd_curation.go.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbie/core/internal/corestore"
)

func newDeleteObservationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-observation <user-id> <observation-id>",
		Short: "Soft-delete one observation and schedule a profile recompute",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Coordinator.DeleteObservation(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("delete-observation: %w", err)
			}
			if err := app.Coordinator.RequestAnalysis(cmd.Context(), args[0]); err != nil && err != corestore.ErrPaused {
				return fmt.Errorf("delete-observation: schedule recompute: %w", err)
			}
			fmt.Println("deleted; recompute scheduled")
			return nil
		},
	}
}

func newReportObservationCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "report-observation <user-id> <observation-id>",
		Short: "Flag an observation with a reason, without deactivating it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Coordinator.ReportObservation(cmd.Context(), args[0], args[1], reason); err != nil {
				return fmt.Errorf("report-observation: %w", err)
			}
			fmt.Println("recorded")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why this observation is being reported")
	return cmd
}

func newHideClusterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hide-cluster <user-id> <cluster-identity>",
		Short: "Hide a behavior cluster (identified by canonical label) from standard reads",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Coordinator.HideCluster(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("hide-cluster: %w", err)
			}
			fmt.Println("hidden")
			return nil
		},
	}
}

func newUnhideClusterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unhide-cluster <user-id> <cluster-identity>",
		Short: "Reveal a previously hidden behavior cluster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Coordinator.UnhideCluster(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("unhide-cluster: %w", err)
			}
			fmt.Println("unhidden")
			return nil
		},
	}
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <user-id>",
		Short: "Pause behavior detection for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Coordinator.PauseDetection(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("pause: %w", err)
			}
			fmt.Println("paused")
			return nil
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <user-id>",
		Short: "Resume behavior detection for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Coordinator.ResumeDetection(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("resume: %w", err)
			}
			fmt.Println("resumed")
			return nil
		},
	}
}
