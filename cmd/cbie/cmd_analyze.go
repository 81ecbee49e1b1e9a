package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <user-id>",
		Short: "Run a full behavior-profile analysis for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")

			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			profile, err := app.Coordinator.AnalyzeNow(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(profile)
			}

			fmt.Printf("user %s: %d cluster(s) (%d primary, %d secondary, %d noise)\n",
				profile.UserID, len(profile.BehaviorClusters),
				profile.AnalysisMetadata.PrimaryCount,
				profile.AnalysisMetadata.SecondaryCount,
				profile.AnalysisMetadata.NoiseCount)
			if profile.Archetype != nil {
				fmt.Printf("archetype: %s — %s\n", profile.Archetype.Label, profile.Archetype.Description)
			} else {
				fmt.Println("archetype: none")
			}
			return nil
		},
	}
}
