package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbie/core/internal/backup"
	"github.com/cbie/core/internal/pathutil"
)

func newRestoreCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore observations, prompts, and profiles from a backup file",
		Long: `Restore reads a backup file produced by "cbie backup" and applies it
to the active store.

By default, restore skips any user already present (merge mode). Pass
--replace to overwrite existing users' data with the backup's copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			inputPath := args[0]

			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			allowedDirs, err := pathutil.DefaultAllowedBackupDirs()
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}

			mode := backup.RestoreMerge
			if replace {
				mode = backup.RestoreReplace
			}

			result, err := backup.Restore(cmd.Context(), app.Store, inputPath, mode, allowedDirs...)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			fmt.Printf("Restored %d user(s), skipped %d\n", result.UsersRestored, result.UsersSkipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Overwrite existing users' data instead of skipping them")
	return cmd
}
