package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/models"
)

func addTestData(t *testing.T, s *corestore.MemoryStore, userID string) {
	t.Helper()
	ctx := context.Background()

	prompt := models.Prompt{ID: userID + "-prompt-1", UserID: userID, Text: "tell me about yourself", Timestamp: time.Now()}
	if err := s.PromptStore().Put(ctx, prompt); err != nil {
		t.Fatalf("Put(prompt) error = %v", err)
	}

	for i, id := range []string{"obs-a", "obs-b", "obs-c"} {
		obs := models.Observation{
			ID:                   userID + "-" + id,
			UserID:               userID,
			Text:                 "behavior " + id,
			Credibility:          0.8,
			Clarity:              0.8,
			ExtractionConfidence: 0.8,
			PromptIDs:            []string{prompt.ID},
			CreatedAt:            time.Now().Add(-time.Duration(i) * time.Hour),
			LastSeenAt:           time.Now(),
			IsActive:             true,
		}
		if err := s.ObservationStore().Put(ctx, obs); err != nil {
			t.Fatalf("Put(observation %s) error = %v", id, err)
		}
	}

	profile := models.Profile{
		UserID: userID,
		BehaviorClusters: []models.Cluster{
			{ClusterID: userID + "-cluster-1", CanonicalLabel: "visual learner", Tier: models.TierPrimary},
		},
	}
	if err := s.ProfileStore().Upsert(ctx, profile); err != nil {
		t.Fatalf("Upsert(profile) error = %v", err)
	}
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	srcStore := corestore.NewMemoryStore()
	addTestData(t, srcStore, "user-a")

	ctx := context.Background()
	backupPath := filepath.Join(t.TempDir(), "test-backup.bin")

	snap, err := Backup(ctx, srcStore, backupPath)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	if snap.Version != FormatVersion {
		t.Errorf("Version = %d, want %d", snap.Version, FormatVersion)
	}
	if len(snap.Users) != 1 {
		t.Fatalf("Users = %d, want 1", len(snap.Users))
	}
	if len(snap.Users[0].Observations) != 3 {
		t.Errorf("Observations = %d, want 3", len(snap.Users[0].Observations))
	}
	if len(snap.Users[0].Prompts) != 1 {
		t.Errorf("Prompts = %d, want 1", len(snap.Users[0].Prompts))
	}
	if snap.Users[0].Profile == nil {
		t.Fatal("Profile is nil, want non-nil")
	}

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		t.Fatal("backup file was not created")
	}

	dstStore := corestore.NewMemoryStore()
	result, err := Restore(ctx, dstStore, backupPath, RestoreMerge)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.UsersRestored != 1 {
		t.Errorf("UsersRestored = %d, want 1", result.UsersRestored)
	}
	if result.UsersSkipped != 0 {
		t.Errorf("UsersSkipped = %d, want 0", result.UsersSkipped)
	}

	profile, err := dstStore.ProfileStore().Get(ctx, "user-a")
	if err != nil {
		t.Fatalf("Get(profile) error = %v", err)
	}
	if len(profile.BehaviorClusters) != 1 {
		t.Errorf("BehaviorClusters = %d, want 1", len(profile.BehaviorClusters))
	}

	active, err := dstStore.ObservationStore().ListActive(ctx, "user-a")
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 3 {
		t.Errorf("active observations = %d, want 3", len(active))
	}
}

func TestRestore_MergeMode(t *testing.T) {
	srcStore := corestore.NewMemoryStore()
	addTestData(t, srcStore, "user-a")

	ctx := context.Background()
	backupPath := filepath.Join(t.TempDir(), "test-backup.bin")
	if _, err := Backup(ctx, srcStore, backupPath); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	dstStore := corestore.NewMemoryStore()
	existing := models.Profile{UserID: "user-a", Settings: models.Settings{DetectionPaused: true}}
	if err := dstStore.ProfileStore().Upsert(ctx, existing); err != nil {
		t.Fatalf("Upsert(existing) error = %v", err)
	}

	result, err := Restore(ctx, dstStore, backupPath, RestoreMerge)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.UsersSkipped != 1 {
		t.Errorf("UsersSkipped = %d, want 1", result.UsersSkipped)
	}
	if result.UsersRestored != 0 {
		t.Errorf("UsersRestored = %d, want 0", result.UsersRestored)
	}

	profile, err := dstStore.ProfileStore().Get(ctx, "user-a")
	if err != nil {
		t.Fatalf("Get(profile) error = %v", err)
	}
	if !profile.Settings.DetectionPaused {
		t.Error("existing profile was overwritten in merge mode")
	}
}

func TestRestore_ReplaceMode(t *testing.T) {
	srcStore := corestore.NewMemoryStore()
	addTestData(t, srcStore, "user-a")

	ctx := context.Background()
	backupPath := filepath.Join(t.TempDir(), "test-backup.bin")
	if _, err := Backup(ctx, srcStore, backupPath); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	dstStore := corestore.NewMemoryStore()
	existing := models.Profile{UserID: "user-a", Settings: models.Settings{DetectionPaused: true}}
	if err := dstStore.ProfileStore().Upsert(ctx, existing); err != nil {
		t.Fatalf("Upsert(existing) error = %v", err)
	}

	result, err := Restore(ctx, dstStore, backupPath, RestoreReplace)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.UsersRestored != 1 {
		t.Errorf("UsersRestored = %d, want 1", result.UsersRestored)
	}

	profile, err := dstStore.ProfileStore().Get(ctx, "user-a")
	if err != nil {
		t.Fatalf("Get(profile) error = %v", err)
	}
	if profile.Settings.DetectionPaused {
		t.Error("replace mode did not overwrite existing profile")
	}
}

func TestBackup_PathValidation(t *testing.T) {
	srcStore := corestore.NewMemoryStore()
	addTestData(t, srcStore, "user-a")

	ctx := context.Background()
	allowedDir := t.TempDir()
	outsideDir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "valid path inside allowed dir",
			path:    filepath.Join(allowedDir, "backup.bin"),
			wantErr: false,
		},
		{
			name:    "path outside allowed dir is rejected",
			path:    filepath.Join(outsideDir, "backup.bin"),
			wantErr: true,
		},
		{
			name:    "path traversal is rejected",
			path:    filepath.Join(allowedDir, "..", "escape.bin"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Backup(ctx, srcStore, tt.path, allowedDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("Backup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil && !strings.Contains(err.Error(), "path rejected") {
				t.Errorf("Backup() error = %v, want 'path rejected' in message", err)
			}
		})
	}
}

func TestBackup_NoValidationWithoutAllowedDirs(t *testing.T) {
	srcStore := corestore.NewMemoryStore()
	addTestData(t, srcStore, "user-a")

	ctx := context.Background()
	backupPath := filepath.Join(t.TempDir(), "backup.bin")

	if _, err := Backup(ctx, srcStore, backupPath); err != nil {
		t.Fatalf("Backup() without allowedDirs should not fail: %v", err)
	}
}

func TestRestore_PathValidation(t *testing.T) {
	srcStore := corestore.NewMemoryStore()
	addTestData(t, srcStore, "user-a")

	ctx := context.Background()
	allowedDir := t.TempDir()
	backupPath := filepath.Join(allowedDir, "backup.bin")
	if _, err := Backup(ctx, srcStore, backupPath); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	outsideDir := t.TempDir()
	outsideBackup := filepath.Join(outsideDir, "backup.bin")
	data, _ := os.ReadFile(backupPath)
	os.WriteFile(outsideBackup, data, 0600)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "valid path inside allowed dir", path: backupPath, wantErr: false},
		{name: "path outside allowed dir is rejected", path: outsideBackup, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dstStore := corestore.NewMemoryStore()
			_, err := Restore(ctx, dstStore, tt.path, RestoreMerge, allowedDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("Restore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil && !strings.Contains(err.Error(), "path rejected") {
				t.Errorf("Restore() error = %v, want 'path rejected' in message", err)
			}
		})
	}
}

func TestBackup_FilePermissions(t *testing.T) {
	srcStore := corestore.NewMemoryStore()
	addTestData(t, srcStore, "user-a")

	ctx := context.Background()
	tmpDir := t.TempDir()
	backupDir := filepath.Join(tmpDir, "newdir", "backups")
	backupPath := filepath.Join(backupDir, "backup.bin")

	if _, err := Backup(ctx, srcStore, backupPath); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	dirInfo, err := os.Stat(backupDir)
	if err != nil {
		t.Fatalf("Stat(backupDir) error = %v", err)
	}
	if dirPerm := dirInfo.Mode().Perm(); dirPerm != 0700 {
		t.Errorf("backup dir permissions = %o, want 0700", dirPerm)
	}

	fileInfo, err := os.Stat(backupPath)
	if err != nil {
		t.Fatalf("Stat(backupPath) error = %v", err)
	}
	if filePerm := fileInfo.Mode().Perm(); filePerm != 0600 {
		t.Errorf("backup file permissions = %o, want 0600", filePerm)
	}
}

func TestRestore_OversizedFile(t *testing.T) {
	ctx := context.Background()
	dstStore := corestore.NewMemoryStore()

	oversizedPath := filepath.Join(t.TempDir(), "oversized-backup.bin")
	f, err := os.Create(oversizedPath)
	if err != nil {
		t.Fatalf("Failed to create oversized file: %v", err)
	}

	chunk := make([]byte, 1024*1024)
	for i := range chunk {
		chunk[i] = ' '
	}
	for i := 0; i < 55; i++ { // 55MB > 50MB limit
		f.Write(chunk)
	}
	f.Close()

	_, err = Restore(ctx, dstStore, oversizedPath, RestoreMerge)
	if err == nil {
		t.Error("expected error for oversized backup file")
	}
}

func TestGenerateBackupPath(t *testing.T) {
	dir := "/tmp/backups"
	path := GenerateBackupPath(dir)

	if filepath.Dir(path) != dir {
		t.Errorf("dir = %s, want %s", filepath.Dir(path), dir)
	}
	if filepath.Ext(path) != ".bin" {
		t.Errorf("ext = %s, want .bin", filepath.Ext(path))
	}
	if !isBackupFile(filepath.Base(path)) {
		t.Errorf("GenerateBackupPath() = %s, does not match backup naming pattern", path)
	}
}
