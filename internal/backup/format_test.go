package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cbie/core/internal/models"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Version:   FormatVersion,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Users: []UserSnapshot{
			{
				UserID: "user-a",
				Observations: []models.Observation{
					{ID: "obs-1", UserID: "user-a", Text: "prefers visual learning", IsActive: true},
				},
				Prompts: []models.Prompt{
					{ID: "prompt-1", UserID: "user-a", Text: "how do I learn this?"},
				},
				Profile: &models.Profile{UserID: "user-a"},
			},
			{UserID: "user-b"},
		},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	snap := testSnapshot()

	if err := Write(path, snap); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if len(got.Users) != 2 {
		t.Fatalf("Users = %d, want 2", len(got.Users))
	}
	if got.Users[0].UserID != "user-a" {
		t.Errorf("Users[0].UserID = %q, want user-a", got.Users[0].UserID)
	}
	if len(got.Users[0].Observations) != 1 || got.Users[0].Observations[0].ID != "obs-1" {
		t.Errorf("Users[0].Observations = %+v, want one obs-1", got.Users[0].Observations)
	}
	if got.Users[0].Profile == nil {
		t.Error("Users[0].Profile is nil, want non-nil")
	}
	if got.Users[1].Profile != nil {
		t.Error("Users[1].Profile is non-nil, want nil (no analysis run yet)")
	}
}

func TestReadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	snap := testSnapshot()
	if err := Write(path, snap); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	header, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if header.Version != FormatVersion {
		t.Errorf("Version = %d, want %d", header.Version, FormatVersion)
	}
	if header.UserCount != 2 {
		t.Errorf("UserCount = %d, want 2", header.UserCount)
	}
	if !header.Compressed {
		t.Error("Compressed = false, want true")
	}
	if header.Checksum == "" {
		t.Error("Checksum is empty")
	}
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	if err := Write(path, testSnapshot()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if err := VerifyChecksum(path); err != nil {
		t.Errorf("VerifyChecksum() on untouched file error = %v, want nil", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	corrupted[len(corrupted)-1] ^= 0xFF
	if err := os.WriteFile(path, corrupted, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := VerifyChecksum(path); err == nil {
		t.Error("VerifyChecksum() on corrupted file error = nil, want checksum mismatch")
	}
}

func TestRead_CorruptedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	if err := Write(path, testSnapshot()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("CORRUPTED"))
	f.Close()

	if _, err := Read(path); err == nil {
		t.Error("Read() on corrupted file error = nil, want error")
	}
}
