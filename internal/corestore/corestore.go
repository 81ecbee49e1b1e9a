// Package corestore defines the repository interfaces the analysis
// pipeline depends on for persistence: ObservationRepository,
// PromptRepository, ProfileRepository, and AuditLog (spec.md §6). Two
// implementations are provided: an in-memory store (memory.go, grounded
// on the teacher's internal/store/memory.go) for tests and the
// SQLite-backed store (sqlite.go, grounded on internal/store/sqlite.go
// and internal/store/schema.go) for production use.
package corestore

import (
	"context"
	"errors"
	"time"

	"github.com/cbie/core/internal/models"
)

// Typed outcomes surfaced to callers instead of raw infrastructure
// errors, per spec.md §7.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyDeleted = errors.New("already deleted")
	ErrPaused         = errors.New("detection paused")
	ErrValidation     = errors.New("validation error")
)

// ObservationRepository stores and mutates Observations. Observations
// are immutable once created except for the soft-delete fields.
type ObservationRepository interface {
	// ListActive returns every is_active=true Observation for a user,
	// in no particular order; callers sort as needed.
	ListActive(ctx context.Context, userID string) ([]models.Observation, error)

	// Get returns a single observation regardless of active state, or
	// ErrNotFound.
	Get(ctx context.Context, userID, observationID string) (*models.Observation, error)

	// Put inserts or replaces an observation (used by ingestion and by
	// the gateway to persist a filled-in embedding).
	Put(ctx context.Context, obs models.Observation) error

	// SoftDelete marks an observation inactive and deleted-by-user. It
	// is idempotent: deleting an already-inactive observation returns
	// ErrAlreadyDeleted rather than mutating state twice.
	SoftDelete(ctx context.Context, userID, observationID string, at time.Time) error

	// MarkReported records a report reason without affecting active
	// state or triggering recompute.
	MarkReported(ctx context.Context, userID, observationID, reason string) error

	// Purge permanently deletes every observation for a user (called
	// after the delete_profile grace period elapses).
	Purge(ctx context.Context, userID string) error
}

// PromptRepository stores immutable Prompts, resolved lazily by ID from
// clusters and observations rather than embedded inline (spec.md §9
// "implicit cyclic references").
type PromptRepository interface {
	ListByIDs(ctx context.Context, promptIDs []string) ([]models.Prompt, error)
	Put(ctx context.Context, p models.Prompt) error
	Purge(ctx context.Context, userID string) error
}

// ProfileRepository stores the single Profile per user_id and its
// settings, independent of any one analysis run's cluster set.
type ProfileRepository interface {
	// Get returns the user's profile, or ErrNotFound if none exists yet.
	Get(ctx context.Context, userID string) (*models.Profile, error)

	// Upsert atomically replaces the profile for userID (spec.md §4.7:
	// "replace-by-user_id, upsert").
	Upsert(ctx context.Context, profile models.Profile) error

	// UpdateClusterVisibility sets is_hidden on a cluster identified by
	// its canonical-label identity, and records the identity in
	// Settings.HiddenClusterIdentities (or removes it on unhide).
	UpdateClusterVisibility(ctx context.Context, userID, clusterIdentity string, hidden bool) error

	UpdateSettings(ctx context.Context, userID string, settings models.Settings) error

	// ScheduleDelete records a pending grace-period deletion.
	ScheduleDelete(ctx context.Context, userID, deletionID string, completeAt time.Time) error

	// CancelDelete clears a pending deletion, restoring the profile to
	// normal visibility.
	CancelDelete(ctx context.Context, userID, deletionID string) error

	// HardDelete permanently removes the profile row for userID.
	HardDelete(ctx context.Context, userID string) error

	// DuePendingDeletions returns user IDs whose grace period has
	// elapsed as of asOf, for a reaper to hard-delete.
	DuePendingDeletions(ctx context.Context, asOf time.Time) ([]string, error)

	// ListUserIDs returns every user_id with a stored profile, in no
	// particular order. Used by the backup package to snapshot the
	// whole profile store and by admin tooling; not part of the
	// per-user analysis path.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// AuditEntry is one append-only record of a user action or analysis
// outcome (spec.md §6).
type AuditEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	UserID    string            `json:"user_id"`
	Action    string            `json:"action"`
	Status    string            `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// AuditLog is an append-only sink for AuditEntry records.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
}
