// Package backup provides backup, restore, and retention for the CBIE
// profile store, grounded on the teacher's internal/backup package: the
// same versioned, checksummed, gzip-compressed envelope (format.go) and
// the same count/age/size retention policies (retention.go), retargeted
// from a graph of nodes/edges to a snapshot of per-user observations,
// prompts, and profiles.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/pathutil"
)

// MaxRestoreFileSize bounds how large a backup file Restore will read
// before decompression even begins.
const MaxRestoreFileSize = 50 * 1024 * 1024

// DefaultBackupDir returns the default backup directory (~/.cbie/backups/).
func DefaultBackupDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("backup: determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cbie", "backups"), nil
}

// Store is the subset of the corestore repositories a full backup needs:
// every user's active observations, prompts, and profile. It is
// satisfied by corestore.MemoryStore and corestore.SQLiteStore directly
// (both expose these three repository views) rather than by the
// narrower per-component interfaces, since backup/restore is whole-store
// maintenance, not part of the per-user analysis path.
type Store interface {
	ObservationStore() corestore.ObservationRepository
	PromptStore() corestore.PromptRepository
	ProfileStore() corestore.ProfileRepository
}

// collectSnapshot gathers the active observations, prompts, and profile
// of every user returned by ProfileRepository.ListUserIDs into a
// Snapshot. Users are enumerated from stored profiles only, so a user
// with observations but no stored profile is not included. Soft-deleted
// observations are not included either:
// a restore recreates the active state a fresh analysis would see, not
// a byte-for-byte mirror of deleted history.
func collectSnapshot(ctx context.Context, store Store, now time.Time) (*Snapshot, error) {
	profiles := store.ProfileStore()
	observations := store.ObservationStore()
	prompts := store.PromptStore()

	userIDs, err := profiles.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: list user ids: %w", err)
	}

	snap := &Snapshot{Version: FormatVersion, CreatedAt: now, Users: make([]UserSnapshot, 0, len(userIDs))}
	for _, userID := range userIDs {
		us := UserSnapshot{UserID: userID}

		active, err := observations.ListActive(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("backup: list observations for %s: %w", userID, err)
		}
		us.Observations = active

		var promptIDs []string
		for _, obs := range active {
			promptIDs = append(promptIDs, obs.PromptIDs...)
		}
		if len(promptIDs) > 0 {
			ps, err := prompts.ListByIDs(ctx, promptIDs)
			if err != nil {
				return nil, fmt.Errorf("backup: list prompts for %s: %w", userID, err)
			}
			us.Prompts = ps
		}

		profile, err := profiles.Get(ctx, userID)
		switch {
		case err == nil:
			us.Profile = profile
		case err == corestore.ErrNotFound:
			// A user can have observations before their first analysis run.
		default:
			return nil, fmt.Errorf("backup: get profile for %s: %w", userID, err)
		}

		snap.Users = append(snap.Users, us)
	}
	return snap, nil
}

// Backup snapshots every user in store and writes it to outputPath. If
// allowedDirs is non-empty, outputPath is validated against them.
func Backup(ctx context.Context, store Store, outputPath string, allowedDirs ...string) (*Snapshot, error) {
	if len(allowedDirs) > 0 {
		if err := pathutil.ValidatePath(outputPath, allowedDirs); err != nil {
			return nil, fmt.Errorf("backup: path rejected: %w", err)
		}
	}

	snap, err := collectSnapshot(ctx, store, time.Now())
	if err != nil {
		return nil, err
	}
	if err := Write(outputPath, snap); err != nil {
		return nil, fmt.Errorf("backup: write: %w", err)
	}
	return snap, nil
}

// RestoreMode controls how Restore handles data that already exists in
// the target store.
type RestoreMode string

const (
	// RestoreMerge skips any user already present in the store.
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites each restored user's existing data.
	RestoreReplace RestoreMode = "replace"
)

// RestoreResult reports what a restore did.
type RestoreResult struct {
	UsersRestored int `json:"users_restored"`
	UsersSkipped  int `json:"users_skipped"`
}

// Restore reads a backup file and applies it to store. If allowedDirs is
// non-empty, inputPath is validated against them.
func Restore(ctx context.Context, store Store, inputPath string, mode RestoreMode, allowedDirs ...string) (*RestoreResult, error) {
	if len(allowedDirs) > 0 {
		if err := pathutil.ValidatePath(inputPath, allowedDirs); err != nil {
			return nil, fmt.Errorf("backup: path rejected: %w", err)
		}
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("backup: stat backup file: %w", err)
	}
	if info.Size() > MaxRestoreFileSize {
		return nil, fmt.Errorf("backup: backup file exceeds maximum size of %d bytes", MaxRestoreFileSize)
	}

	snap, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	return restoreFromSnapshot(ctx, store, snap, mode)
}

func restoreFromSnapshot(ctx context.Context, store Store, snap *Snapshot, mode RestoreMode) (*RestoreResult, error) {
	observations := store.ObservationStore()
	prompts := store.PromptStore()
	profiles := store.ProfileStore()

	result := &RestoreResult{}
	for _, us := range snap.Users {
		if mode == RestoreMerge {
			if _, err := profiles.Get(ctx, us.UserID); err == nil {
				result.UsersSkipped++
				continue
			} else if err != corestore.ErrNotFound {
				return nil, fmt.Errorf("backup: check existing profile for %s: %w", us.UserID, err)
			}
		}

		if err := restoreUser(ctx, observations, prompts, profiles, us); err != nil {
			return nil, fmt.Errorf("backup: restore user %s: %w", us.UserID, err)
		}
		result.UsersRestored++
	}
	return result, nil
}

func restoreUser(ctx context.Context, observations corestore.ObservationRepository, prompts corestore.PromptRepository, profiles corestore.ProfileRepository, us UserSnapshot) error {
	for _, p := range us.Prompts {
		if err := prompts.Put(ctx, p); err != nil {
			return fmt.Errorf("put prompt %s: %w", p.ID, err)
		}
	}
	for _, obs := range us.Observations {
		if err := observations.Put(ctx, obs); err != nil {
			return fmt.Errorf("put observation %s: %w", obs.ID, err)
		}
	}
	if us.Profile != nil {
		if err := profiles.Upsert(ctx, *us.Profile); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
	}
	return nil
}

// GenerateBackupPath creates a timestamped backup filename in dir.
func GenerateBackupPath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("cbie-backup-%s.bin", ts))
}

// isBackupFile returns true if the filename matches the CBIE backup
// naming pattern.
func isBackupFile(name string) bool {
	return strings.HasPrefix(name, "cbie-backup-") && strings.HasSuffix(name, ".bin")
}

