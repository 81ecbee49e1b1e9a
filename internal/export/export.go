// Package export implements the export(user_id, format) command: a full
// observation+cluster+settings dump for a user. Grounded on the
// teacher's internal/backup/format.go header+checksum envelope, scaled
// down to a single JSON format (no gzip, no V1/V2 negotiation) since
// this is a point-in-time read dump, not a restorable backup.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/models"
)

// FormatVersion is the envelope version for Dump.
const FormatVersion = 1

// Dump is the full export envelope for one user.
type Dump struct {
	Version      int                  `json:"version"`
	CreatedAt    time.Time            `json:"created_at"`
	Checksum     string               `json:"checksum"`
	UserID       string               `json:"user_id"`
	Observations []models.Observation `json:"observations"`
	Clusters     []models.Cluster     `json:"clusters"`
	Archetype    *models.Archetype    `json:"archetype,omitempty"`
	Settings     models.Settings      `json:"settings"`
}

// Exporter builds Dumps from the observation and profile repositories.
type Exporter struct {
	observations corestore.ObservationRepository
	profiles     corestore.ProfileRepository
	now          func() time.Time
}

// New builds an Exporter.
func New(observations corestore.ObservationRepository, profiles corestore.ProfileRepository) *Exporter {
	return &Exporter{observations: observations, profiles: profiles, now: time.Now}
}

// Export produces a full dump for userID. A user with no profile yet
// still gets a dump: empty clusters, zero-value settings.
func (e *Exporter) Export(ctx context.Context, userID string) (*Dump, error) {
	active, err := e.observations.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("export: list observations: %w", err)
	}

	dump := &Dump{
		Version:      FormatVersion,
		CreatedAt:    e.now(),
		UserID:       userID,
		Observations: active,
	}

	profile, err := e.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		dump.Clusters = profile.BehaviorClusters
		dump.Archetype = profile.Archetype
		dump.Settings = profile.Settings
	case err == corestore.ErrNotFound:
		// No profile yet: observations-only dump.
	default:
		return nil, fmt.Errorf("export: get profile: %w", err)
	}

	checksum, err := checksumOf(dump)
	if err != nil {
		return nil, fmt.Errorf("export: checksum: %w", err)
	}
	dump.Checksum = checksum

	return dump, nil
}

// checksumOf hashes the dump's content fields (not the checksum field
// itself, which is always empty at hash time).
func checksumOf(d *Dump) (string, error) {
	payload, err := json.Marshal(struct {
		Observations []models.Observation `json:"observations"`
		Clusters     []models.Cluster     `json:"clusters"`
		Archetype    *models.Archetype    `json:"archetype,omitempty"`
		Settings     models.Settings      `json:"settings"`
	}{d.Observations, d.Clusters, d.Archetype, d.Settings})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Render serializes the dump in the requested format. Only "json" is
// implemented today; the envelope's Version field leaves room for a
// future binary or compressed format without breaking existing readers.
func (d *Dump) Render(format string) ([]byte, error) {
	switch format {
	case "", "json":
		return json.MarshalIndent(d, "", "  ")
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}
