// Package tiering implements the Tier Classifier (C5): it maps a
// cluster's (cluster_strength, confidence) pair to PRIMARY, SECONDARY,
// or NOISE. It is adapted directly from the teacher's
// internal/tiering/activation_tiers.go threshold-mapping structure,
// renamed from the four-tier InjectionTier domain to this spec's
// three-tier PRIMARY/SECONDARY/NOISE domain, with the token-budget
// demotion pass dropped (not part of this spec's tiering contract).
package tiering

import (
	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/models"
)

// Classifier maps (cluster_strength, confidence) pairs to tiers using a
// fixed pair of threshold sets, exposed via Thresholds() so callers (and
// tests) can inspect the configuration in force.
type Classifier struct {
	cfg config.TieringConfig
}

// New builds a Classifier from the tiering section of the pipeline
// configuration.
func New(cfg config.TieringConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Thresholds returns the configured tier thresholds.
func (c *Classifier) Thresholds() config.TieringConfig {
	return c.cfg
}

// Classify returns PRIMARY when strength >= PrimaryStrengthThreshold AND
// confidence >= PrimaryConfidenceThreshold; SECONDARY when
// SecondaryStrengthThreshold <= strength < PrimaryStrengthThreshold AND
// confidence >= SecondaryConfidenceThreshold; NOISE otherwise. Degenerate
// singleton clusters are always NOISE regardless of strength, per spec.md
// §4.5. A value exactly at a threshold satisfies the ">=" comparison. A
// cluster that meets the primary strength threshold but misses the
// primary confidence threshold is NOISE, since the SECONDARY strength
// band ends below the primary strength threshold.
func (c *Classifier) Classify(strength, confidence float64, isSingleton bool) models.Tier {
	if isSingleton {
		return models.TierNoise
	}

	if strength >= c.cfg.PrimaryStrengthThreshold && confidence >= c.cfg.PrimaryConfidenceThreshold {
		return models.TierPrimary
	}
	if strength >= c.cfg.SecondaryStrengthThreshold && strength < c.cfg.PrimaryStrengthThreshold && confidence >= c.cfg.SecondaryConfidenceThreshold {
		return models.TierSecondary
	}
	return models.TierNoise
}

// ClassifyCluster classifies a Cluster in place, setting its Tier field,
// and returns the assigned tier for convenience.
func (c *Classifier) ClassifyCluster(cl *models.Cluster) models.Tier {
	cl.Tier = c.Classify(cl.ClusterStrength, cl.Confidence, cl.ClusterSize <= 1)
	return cl.Tier
}
