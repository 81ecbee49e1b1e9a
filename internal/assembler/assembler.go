// Package assembler implements the Profile Assembler (C7): it takes one
// analysis run's clusters (all tiers, including NOISE) and folds them
// into the single persistent Profile for a user, carrying forward
// user-controlled visibility state across runs. It follows the
// compiler-object shape of the teacher's internal/assembly/compile.go
// (a configured struct with one entrypoint producing a structured
// result) rather than its prompt-formatting content.
package assembler

import (
	"context"
	"fmt"
	"time"

	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/models"
	"github.com/cbie/core/internal/vecmath"
)

// Assembler folds a run's clusters into a user's persistent Profile.
type Assembler struct {
	cfg      config.AssemblerConfig
	profiles corestore.ProfileRepository
	audit    corestore.AuditLog
}

// New builds an Assembler. audit may be nil, in which case writes are
// not recorded (used in tests that don't care about the audit trail).
func New(cfg config.AssemblerConfig, profiles corestore.ProfileRepository, audit corestore.AuditLog) *Assembler {
	return &Assembler{cfg: cfg, profiles: profiles, audit: audit}
}

// Assemble builds the new Profile for userID from this run's clusters
// and archetype, carries forward IsHidden from the prior profile (if
// any) by nearest-centroid match within τ_hide, upserts it, and emits
// an audit record. It never drops a cluster: NOISE and hidden clusters
// are retained in BehaviorClusters so future runs can re-match them.
func (a *Assembler) Assemble(ctx context.Context, userID string, clusters []models.Cluster, archetype *models.Archetype, meta models.AnalysisMetadata, now time.Time) (*models.Profile, error) {
	prior, err := a.profiles.Get(ctx, userID)
	if err != nil && err != corestore.ErrNotFound {
		return nil, fmt.Errorf("assembler: load prior profile: %w", err)
	}

	settings := models.Settings{}
	if prior != nil {
		settings = prior.Settings
		a.carryHiddenState(prior, clusters)
	}

	profile := models.Profile{
		UserID:           userID,
		BehaviorClusters: clusters,
		Archetype:        archetype,
		AnalysisMetadata: meta,
		Settings:         settings,
	}

	if err := a.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("assembler: upsert profile: %w", err)
	}

	a.recordAudit(ctx, userID, meta, now)
	return &profile, nil
}

// carryHiddenState mutates clusters in place, setting IsHidden=true on
// any cluster whose canonical label exactly matches a prior hidden
// cluster, or whose centroid falls within τ_hide cosine distance of a
// prior hidden cluster's centroid (spec.md §4.7: clusters regenerate
// IDs every run, so identity must be inferred rather than carried by
// key).
func (a *Assembler) carryHiddenState(prior *models.Profile, clusters []models.Cluster) {
	var hiddenPrior []models.Cluster
	for _, c := range prior.BehaviorClusters {
		if c.IsHidden {
			hiddenPrior = append(hiddenPrior, c)
		}
	}
	if len(hiddenPrior) == 0 {
		return
	}

	for i := range clusters {
		if a.matchesHiddenPrior(clusters[i], hiddenPrior) {
			clusters[i].IsHidden = true
		}
	}
}

func (a *Assembler) matchesHiddenPrior(c models.Cluster, hiddenPrior []models.Cluster) bool {
	for _, prior := range hiddenPrior {
		if c.Identity() == prior.Identity() {
			return true
		}
		if len(c.Centroid) == 0 || len(prior.Centroid) == 0 {
			continue
		}
		if vecmath.CosineDistance(c.Centroid, prior.Centroid) <= a.cfg.HiddenClusterMatchThreshold {
			return true
		}
	}
	return false
}

func (a *Assembler) recordAudit(ctx context.Context, userID string, meta models.AnalysisMetadata, now time.Time) {
	if a.audit == nil {
		return
	}
	_ = a.audit.Append(ctx, corestore.AuditEntry{
		Timestamp: now,
		UserID:    userID,
		Action:    "analyze",
		Status:    "ok",
		Fields: map[string]string{
			"cluster_count":  fmt.Sprintf("%d", meta.ClusterCount),
			"primary_count":  fmt.Sprintf("%d", meta.PrimaryCount),
			"observation_ct": fmt.Sprintf("%d", meta.ObservationCount),
		},
	})
}
