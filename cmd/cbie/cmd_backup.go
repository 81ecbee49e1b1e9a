package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cbie/core/internal/backup"
	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/pathutil"
)

func newBackupCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot every user's observations, prompts, and profile to a backup file",
		Long: `Backup the full profile store (observations, prompts, profiles) for
every user to a checksummed, gzip-compressed file.

Default location: ~/.cbie/backups/cbie-backup-YYYYMMDD-HHMMSS.bin
Retention is then applied according to config (default: keep last 10).

Examples:
  cbie backup                          # backup to the default directory
  cbie backup --output ~/.cbie/backups/mine.bin  # backup to a named file (must be under ~/.cbie/backups/)
  cbie backup list                     # list existing backups
  cbie backup verify <file>            # verify a backup's checksum`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			var allowedDirs []string
			if outputPath == "" {
				dir, err := backup.DefaultBackupDir()
				if err != nil {
					return fmt.Errorf("backup: %w", err)
				}
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return fmt.Errorf("backup: create backup directory: %w", err)
				}
				outputPath = backup.GenerateBackupPath(dir)
			} else {
				allowedDirs, err = pathutil.DefaultAllowedBackupDirs()
				if err != nil {
					return fmt.Errorf("backup: %w", err)
				}
			}

			snap, err := backup.Backup(cmd.Context(), app.Store, outputPath, allowedDirs...)
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}

			policy := buildRetentionPolicy(app.Config.Backup.Retention)
			dir := filepath.Dir(outputPath)
			if _, err := backup.ApplyRetention(dir, policy); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to apply retention: %v\n", err)
			}

			if jsonOut {
				info, _ := os.Stat(outputPath)
				var sizeBytes int64
				if info != nil {
					sizeBytes = info.Size()
				}
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"path":       outputPath,
					"user_count": len(snap.Users),
					"size_bytes": sizeBytes,
				})
			}
			fmt.Printf("Backup created: %d user(s)\n", len(snap.Users))
			fmt.Printf("  Path: %s\n", outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Output file path (default: auto-generated in ~/.cbie/backups/)")

	cmd.AddCommand(newBackupListCmd(), newBackupVerifyCmd())
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups in the default backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := backup.DefaultBackupDir()
			if err != nil {
				return fmt.Errorf("backup list: %w", err)
			}
			backups, err := backup.ListBackups(dir)
			if err != nil {
				return fmt.Errorf("backup list: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"backups":     backups,
					"total_count": len(backups),
					"directory":   dir,
				})
			}
			if len(backups) == 0 {
				fmt.Printf("No backups found in %s\n", dir)
				return nil
			}
			fmt.Printf("Backups in %s:\n", dir)
			for _, b := range backups {
				fmt.Printf("  %s  v%d  %s\n", b.CreatedAt.Format("2006-01-02 15:04"), b.Version, formatBytes(b.Size))
			}
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup file's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			filePath := args[0]

			err := backup.VerifyChecksum(filePath)
			if jsonOut {
				result := map[string]any{"file": filePath, "valid": err == nil}
				if err != nil {
					result["error"] = err.Error()
				}
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			if err != nil {
				fmt.Printf("FAILED: %v\n", err)
				return fmt.Errorf("checksum verification failed")
			}
			fmt.Println("OK: checksum verified")
			return nil
		},
	}
}

// buildRetentionPolicy turns config.RetentionConfig into a composite
// backup.RetentionPolicy, the way the teacher's cmd_backup.go does for
// its own (differently named) retention config.
func buildRetentionPolicy(cfg config.RetentionConfig) backup.RetentionPolicy {
	var policies []backup.RetentionPolicy

	if cfg.MaxCount > 0 {
		policies = append(policies, &backup.CountPolicy{MaxCount: cfg.MaxCount})
	}
	if cfg.MaxAge != "" {
		if d, err := backup.ParseDuration(cfg.MaxAge); err == nil {
			policies = append(policies, &backup.AgePolicy{MaxAge: d})
		}
	}
	if cfg.MaxTotalSize != "" {
		if s, err := backup.ParseSize(cfg.MaxTotalSize); err == nil {
			policies = append(policies, &backup.SizePolicy{MaxTotalBytes: s})
		}
	}

	if len(policies) == 0 {
		return &backup.CountPolicy{MaxCount: 10}
	}
	if len(policies) == 1 {
		return policies[0]
	}
	return &backup.CompositePolicy{Policies: policies}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
