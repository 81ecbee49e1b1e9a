package export

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/models"
)

func TestExport_NoProfile_ObservationsOnlyDump(t *testing.T) {
	store := corestore.NewMemoryStore()
	now := time.Now()
	_ = store.ObservationStore().Put(context.Background(), models.Observation{
		ID: "o1", UserID: "u1", Text: "likes analogies",
		IsActive: true, CreatedAt: now, LastSeenAt: now,
	})

	e := New(store.ObservationStore(), store.ProfileStore())
	dump, err := e.Export(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(dump.Observations) != 1 {
		t.Fatalf("Observations = %d, want 1", len(dump.Observations))
	}
	if len(dump.Clusters) != 0 {
		t.Errorf("expected no clusters without a profile, got %d", len(dump.Clusters))
	}
	if dump.Checksum == "" {
		t.Error("expected a non-empty checksum")
	}
}

func TestExport_WithProfile_IncludesClustersAndSettings(t *testing.T) {
	store := corestore.NewMemoryStore()
	now := time.Now()
	profile := models.Profile{
		UserID: "u1",
		BehaviorClusters: []models.Cluster{
			{ID: "c1", CanonicalLabel: "prefers analogies", Tier: models.TierPrimary},
		},
		Settings: models.Settings{DetectionPaused: true},
	}
	if err := store.ProfileStore().Upsert(context.Background(), profile); err != nil {
		t.Fatal(err)
	}
	_ = now

	e := New(store.ObservationStore(), store.ProfileStore())
	dump, err := e.Export(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(dump.Clusters) != 1 {
		t.Fatalf("Clusters = %d, want 1", len(dump.Clusters))
	}
	if !dump.Settings.DetectionPaused {
		t.Error("expected settings to carry over DetectionPaused")
	}
}

func TestDump_Render_JSON(t *testing.T) {
	store := corestore.NewMemoryStore()
	e := New(store.ObservationStore(), store.ProfileStore())
	dump, err := e.Export(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := dump.Render("json")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var roundTripped Dump
	if err := json.Unmarshal(data, &roundTripped); err != nil {
		t.Fatalf("unmarshal rendered dump: %v", err)
	}
	if roundTripped.UserID != "u1" {
		t.Errorf("round-tripped user_id = %q, want u1", roundTripped.UserID)
	}
}

func TestDump_Render_UnsupportedFormat(t *testing.T) {
	d := &Dump{}
	if _, err := d.Render("xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
