package models

import "time"

// Archetype is the short LLM-generated (or rule-based fallback) summary
// of a user's dominant behavior pattern, derived from PRIMARY-tier
// clusters only.
type Archetype struct {
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`

	// GeneratedByLLM is false when the rule-based fallback produced this
	// archetype because the LLM provider was unavailable or returned an
	// error (see internal/archetype).
	GeneratedByLLM bool `json:"generated_by_llm" yaml:"generated_by_llm"`
}

// AnalysisMetadata records facts about the run that produced a Profile,
// independent of its content, for diagnostics and the audit trail.
type AnalysisMetadata struct {
	RunAt               time.Time `json:"run_at" yaml:"run_at"`
	ObservationCount     int       `json:"observation_count" yaml:"observation_count"`
	ActiveObservationCount int     `json:"active_observation_count" yaml:"active_observation_count"`
	ClusterCount        int       `json:"cluster_count" yaml:"cluster_count"`
	PrimaryCount        int       `json:"primary_count" yaml:"primary_count"`
	SecondaryCount      int       `json:"secondary_count" yaml:"secondary_count"`
	NoiseCount          int       `json:"noise_count" yaml:"noise_count"`
	DurationMillis      int64     `json:"duration_millis" yaml:"duration_millis"`
}

// PrivacyLevel controls how much of a user's profile is exposed through
// external-facing reads (e.g. export, MCP tool responses).
type PrivacyLevel int

const (
	PrivacyStandard PrivacyLevel = iota
	PrivacyMinimal
)

func (p PrivacyLevel) String() string {
	if p == PrivacyMinimal {
		return "minimal"
	}
	return "standard"
}

// Settings holds the user-controlled, cross-run-persistent knobs that
// the analysis pipeline must respect and the Profile Assembler (C7)
// must never overwrite from a run's derived output.
type Settings struct {
	PrivacyLevel PrivacyLevel `json:"privacy_level" yaml:"privacy_level"`

	// DetectionPaused, when true, means the Correction Coordinator (C8)
	// must reject new analyze commands for this user until resumed.
	DetectionPaused bool `json:"detection_paused" yaml:"detection_paused"`

	// HiddenClusterIdentities is the set of canonical labels the user
	// has hidden; carried across runs by C7's nearest-centroid match.
	HiddenClusterIdentities []string `json:"hidden_cluster_identities" yaml:"hidden_cluster_identities"`

	// PendingDeletion is set by delete_profile and cleared by a
	// cancel_delete_profile call presenting the deletion ID before the
	// grace period elapses.
	PendingDeletion   bool       `json:"pending_deletion,omitempty" yaml:"pending_deletion,omitempty"`
	DeletionRequestedAt *time.Time `json:"deletion_requested_at,omitempty" yaml:"deletion_requested_at,omitempty"`
}

// Profile is the top-level, user-visible output of one analysis run: the
// set of behavior clusters, their tiers, and an optional archetype
// summary, plus the settings that persist independently of any single
// run.
type Profile struct {
	UserID string `json:"user_id" yaml:"user_id"`

	BehaviorClusters []Cluster `json:"behavior_clusters" yaml:"behavior_clusters"`

	// Archetype is nil when no PRIMARY-tier cluster exists for this user.
	Archetype *Archetype `json:"archetype,omitempty" yaml:"archetype,omitempty"`

	AnalysisMetadata AnalysisMetadata `json:"analysis_metadata" yaml:"analysis_metadata"`
	Settings         Settings         `json:"settings" yaml:"settings"`
}

// VisibleClusters returns the clusters a standard read should return:
// non-hidden clusters only. Hidden clusters are always retained in
// BehaviorClusters so future runs can re-match and re-hide them.
func (p *Profile) VisibleClusters() []Cluster {
	out := make([]Cluster, 0, len(p.BehaviorClusters))
	for _, c := range p.BehaviorClusters {
		if !c.IsHidden {
			out = append(out, c)
		}
	}
	return out
}

// FindByCanonicalLabel returns the cluster with the given canonical
// label, used by C7 to carry IsHidden forward across runs.
func (p *Profile) FindByCanonicalLabel(label string) (*Cluster, bool) {
	for i := range p.BehaviorClusters {
		if p.BehaviorClusters[i].CanonicalLabel == label {
			return &p.BehaviorClusters[i], true
		}
	}
	return nil, false
}
