// Package mcpserver exposes the Correction Coordinator's command
// surface (spec.md §6 "Analysis command surface") as MCP tools:
// analyze, delete_observation, report_observation, hide_cluster,
// unhide_cluster, pause, resume, export, and delete_profile. Grounded
// on the teacher's internal/mcp package (server.go's bounded worker
// pool and signal handling, handlers.go's rate-limit-then-validate-
// then-execute shape, schema.go's typed input/output structs).
package mcpserver

// AnalyzeInput requests a full recompute for a user.
type AnalyzeInput struct {
	UserID string `json:"user_id" jsonschema:"The user to analyze,required"`
}

// AnalyzeOutput summarizes the resulting profile without repeating the
// full cluster payload; callers that need the full profile use export.
type AnalyzeOutput struct {
	UserID        string `json:"user_id"`
	ClusterCount  int    `json:"cluster_count"`
	PrimaryCount  int    `json:"primary_count"`
	Archetype     string `json:"archetype,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
}

// DeleteObservationInput identifies one observation to soft-delete.
type DeleteObservationInput struct {
	UserID        string `json:"user_id" jsonschema:"The owning user,required"`
	ObservationID string `json:"observation_id" jsonschema:"The observation to delete,required"`
}

// DeleteObservationOutput confirms the soft-delete and whether a
// recompute was scheduled.
type DeleteObservationOutput struct {
	Deleted            bool `json:"deleted"`
	RecomputeScheduled bool `json:"recompute_scheduled"`
}

// ReportObservationInput flags an observation without deactivating it.
type ReportObservationInput struct {
	UserID        string `json:"user_id" jsonschema:"The owning user,required"`
	ObservationID string `json:"observation_id" jsonschema:"The observation being reported,required"`
	Reason        string `json:"reason" jsonschema:"Why this observation is being reported,required"`
}

// ReportObservationOutput confirms the report was recorded.
type ReportObservationOutput struct {
	Recorded bool `json:"recorded"`
}

// ClusterVisibilityInput names the user and cluster identity (canonical
// label, spec.md §4.7) a hide/unhide command applies to.
type ClusterVisibilityInput struct {
	UserID          string `json:"user_id" jsonschema:"The owning user,required"`
	ClusterIdentity string `json:"cluster_identity" jsonschema:"The cluster's canonical label,required"`
}

// ClusterVisibilityOutput confirms the new visibility state.
type ClusterVisibilityOutput struct {
	Hidden bool `json:"hidden"`
}

// DetectionToggleInput names the user a pause/resume command applies to.
type DetectionToggleInput struct {
	UserID string `json:"user_id" jsonschema:"The user whose detection is toggled,required"`
}

// DetectionToggleOutput confirms the new paused state.
type DetectionToggleOutput struct {
	Paused bool `json:"paused"`
}

// ExportInput requests a full dump for a user.
type ExportInput struct {
	UserID string `json:"user_id" jsonschema:"The user to export,required"`
	Format string `json:"format,omitempty" jsonschema:"Output format (only 'json' is supported today)"`
}

// ExportOutput carries the rendered dump as a string so it serializes
// cleanly regardless of format (json today, future formats later).
type ExportOutput struct {
	UserID  string `json:"user_id"`
	Format  string `json:"format"`
	Payload string `json:"payload"`
}

// DeleteProfileInput requests a grace-period profile deletion.
type DeleteProfileInput struct {
	UserID string `json:"user_id" jsonschema:"The user whose profile is being deleted,required"`
}

// DeleteProfileOutput returns the deletion ID a cancel call must present.
type DeleteProfileOutput struct {
	DeletionID string `json:"deletion_id"`
	CompleteAt string `json:"complete_at"`
}

// CancelDeleteProfileInput cancels a pending grace-period deletion.
type CancelDeleteProfileInput struct {
	UserID     string `json:"user_id" jsonschema:"The user whose deletion is being cancelled,required"`
	DeletionID string `json:"deletion_id" jsonschema:"The deletion ID returned by delete_profile,required"`
}

// CancelDeleteProfileOutput confirms the cancellation.
type CancelDeleteProfileOutput struct {
	Cancelled bool `json:"cancelled"`
}
