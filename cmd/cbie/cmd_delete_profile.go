package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDeleteProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-profile <user-id>",
		Short: "Schedule a 30-day-grace deletion of a user's profile, observations, and prompts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			deletionID, completeAt, err := app.Coordinator.RequestProfileDeletion(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("delete-profile: %w", err)
			}
			fmt.Printf("scheduled: deletion_id=%s complete_at=%s\n", deletionID, completeAt.Format("2006-01-02T15:04:05Z07:00"))
			fmt.Println("cancel with: cbie cancel-delete-profile <user-id> <deletion-id>")
			return nil
		},
	}
}

func newCancelDeleteProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-delete-profile <user-id> <deletion-id>",
		Short: "Cancel a pending grace-period profile deletion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Coordinator.CancelProfileDeletion(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("cancel-delete-profile: %w", err)
			}
			fmt.Println("cancelled")
			return nil
		},
	}
}

func newReapDeletionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap-deletions",
		Short: "Purge every profile whose 30-day grace period has elapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Coordinator.ReapDueDeletions(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("reap-deletions: %w", err)
			}
			fmt.Printf("reaped %d profile(s)\n", n)
			return nil
		},
	}
}
