// Package models defines the core entities of the behavior identification
// engine: Observation, Prompt, Cluster, and Profile.
package models

import "time"

// Observation is a single detected behavioral signal extracted from a
// user's interaction with an upstream system. It is immutable once
// created, except for Embedding, which the analysis pipeline fills in
// once, the soft-delete fields (IsActive, DeletedByUser, DeletedAt),
// which move in one direction only, and ReportReason.
type Observation struct {
	ID     string `json:"id" yaml:"id"`
	UserID string `json:"user_id" yaml:"user_id"`

	// Text is the short behavioral tag, e.g. "prefers visual learning".
	Text string `json:"text" yaml:"text"`

	// Credibility, Clarity, and ExtractionConfidence are all in [0,1] and
	// feed the Behavior Weight calculation (see internal/scoring).
	Credibility          float64 `json:"credibility" yaml:"credibility"`
	Clarity              float64 `json:"clarity" yaml:"clarity"`
	ExtractionConfidence float64 `json:"extraction_confidence" yaml:"extraction_confidence"`

	// ReinforcementCount is how many times this same signal has been
	// independently observed; DecayRate is the per-day exponential decay
	// applied based on recency.
	ReinforcementCount int     `json:"reinforcement_count" yaml:"reinforcement_count"`
	DecayRate          float64 `json:"decay_rate" yaml:"decay_rate"`

	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at" yaml:"last_seen_at"`

	// PromptIDs is the set of prompts that produced or reinforced this
	// observation.
	PromptIDs []string `json:"prompt_ids,omitempty" yaml:"prompt_ids,omitempty"`

	// Embedding is nil until the Embedding Gateway (C2) fills it in.
	// It is always L2-normalized once present.
	Embedding []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`

	IsActive      bool    `json:"is_active" yaml:"is_active"`
	DeletedByUser bool    `json:"deleted_by_user,omitempty" yaml:"deleted_by_user,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
	ReportReason  string  `json:"report_reason,omitempty" yaml:"report_reason,omitempty"`
}

// SoftDelete marks the observation inactive and deleted-by-user. It is a
// one-way transition: calling it on an already-inactive observation is a
// no-op, matching the spec's "never returns to true" invariant.
func (o *Observation) SoftDelete(at time.Time) {
	if !o.IsActive {
		return
	}
	o.IsActive = false
	o.DeletedByUser = true
	t := at
	o.DeletedAt = &t
}

// MarkReported records a user-submitted report reason without affecting
// the observation's active status or scoring.
func (o *Observation) MarkReported(reason string) {
	o.ReportReason = reason
}
