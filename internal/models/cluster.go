package models

import "time"

// Tier classifies a Cluster as a real, user-visible behavior pattern or
// as noise. Assigned by the Tier Classifier (C5) from cluster_strength
// and confidence.
type Tier int

const (
	// TierNoise is the zero value: clusters that don't clear either
	// threshold, and all singleton (cluster_size=1) clusters.
	TierNoise Tier = iota
	TierSecondary
	TierPrimary
)

// String returns the lowercase wire representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	default:
		return "noise"
	}
}

// MarshalJSON encodes the tier as its string name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// DistanceStats summarizes pairwise cosine distances within a cluster.
type DistanceStats struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
	Max  float64 `json:"max" yaml:"max"`
}

// Cluster is a derived, run-scoped artifact grouping semantically similar
// observations. It is never user-editable except for IsHidden, and its
// scores are always rederived from member observations, never mutated
// directly.
type Cluster struct {
	// ClusterID is stable only within one analysis run; it is
	// regenerated on every run. Use CanonicalLabel + centroid proximity
	// to track a cluster's identity across runs (see IsHidden carry-over).
	ClusterID string `json:"cluster_id" yaml:"cluster_id"`

	ObservationIDs []string `json:"observation_ids" yaml:"observation_ids"`
	ClusterSize    int      `json:"cluster_size" yaml:"cluster_size"`

	// CanonicalLabel is display-only and never feeds any score.
	CanonicalLabel    string   `json:"canonical_label" yaml:"canonical_label"`
	ClusterName        string   `json:"cluster_name,omitempty" yaml:"cluster_name,omitempty"`
	WordingVariations   []string `json:"wording_variations" yaml:"wording_variations"`

	// PromptIDs is the union of every member observation's prompt
	// references, resolved lazily through the Prompt Repository.
	PromptIDs []string `json:"prompt_ids,omitempty" yaml:"prompt_ids,omitempty"`

	Centroid []float32 `json:"centroid" yaml:"centroid"`

	ClusterStrength float64 `json:"cluster_strength" yaml:"cluster_strength"`
	Confidence      float64 `json:"confidence" yaml:"confidence"`

	ConsistencyScore   float64 `json:"consistency_score" yaml:"consistency_score"`
	ReinforcementScore float64 `json:"reinforcement_score" yaml:"reinforcement_score"`
	ClarityTrend       float64 `json:"clarity_trend" yaml:"clarity_trend"`

	IntraClusterDistance DistanceStats `json:"intra_cluster_distance" yaml:"intra_cluster_distance"`

	Tier Tier `json:"tier" yaml:"tier"`

	FirstSeenAt time.Time `json:"first_seen_at" yaml:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" yaml:"last_seen_at"`
	DaysActive  float64   `json:"days_active" yaml:"days_active"`

	// IsHidden is user-controlled and carried over across runs by the
	// Profile Assembler (C7) matching canonical label + nearest centroid.
	IsHidden bool `json:"is_hidden" yaml:"is_hidden"`

	// IsNoisePoint marks a degenerate singleton cluster produced when
	// the clustering engine had fewer than two input points, or when a
	// point was labeled noise (-1) by the clustering engine.
	IsNoisePoint bool `json:"is_noise_point,omitempty" yaml:"is_noise_point,omitempty"`
}

// Identity returns the stable cross-run identity used to match a cluster
// to a prior run's hidden-cluster list: its canonical label. Centroid
// proximity (τ_hide) is checked separately by the caller since it
// requires comparing against the prior cluster's centroid.
func (c *Cluster) Identity() string {
	return c.CanonicalLabel
}
