// Package coordinator implements the Correction Coordinator (C8): the
// single entry point for every user-initiated correction command
// (delete_observation, hide_cluster, unhide_cluster, pause_detection,
// resume_detection, delete_profile) and for triggering a fresh
// analysis run. It follows the teacher's internal/mcp/server.go
// bounded-worker-pool idiom (a buffered channel semaphore gating
// background goroutines) combined with internal/learning/loop.go's
// orchestrator-struct shape, and adds per-user serialization with
// last-write-wins coalescing so at most one RequestAnalysis run is in
// flight for a given user. AnalyzeNow runs outside this serialization
// and can overlap a RequestAnalysis run for the same user.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/models"
)

// AnalysisRunner executes one full pipeline pass (score -> embed ->
// cluster -> aggregate -> classify -> archetype -> assemble) for a
// single user and persists the resulting profile. Implemented outside
// this package so the coordinator depends only on the interface.
type AnalysisRunner interface {
	Analyze(ctx context.Context, userID string) (*models.Profile, error)
}

// userState serializes and coalesces analysis requests for one user:
// if a request arrives while one is already running, it is folded into
// a single rerun rather than queued twice. cancel stops the in-flight
// run's context; RequestProfileDeletion invokes it so a delete-profile
// command always cancels any analysis running for that user before
// purging (spec.md §5).
type userState struct {
	mu      sync.Mutex
	running bool
	pending bool
	cancel  context.CancelFunc
}

// Coordinator is the correction command surface described above.
type Coordinator struct {
	observations corestore.ObservationRepository
	prompts      corestore.PromptRepository
	profiles     corestore.ProfileRepository
	audit        corestore.AuditLog
	runner       AnalysisRunner
	logger       *slog.Logger

	gracePeriod time.Duration

	workerPool chan struct{}

	usersMu sync.Mutex
	users   map[string]*userState
}

// New builds a Coordinator. logger may be nil.
func New(cfg config.AssemblerConfig, observations corestore.ObservationRepository, prompts corestore.PromptRepository, profiles corestore.ProfileRepository, audit corestore.AuditLog, runner AnalysisRunner, logger *slog.Logger) *Coordinator {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{
		observations: observations,
		prompts:      prompts,
		profiles:     profiles,
		audit:        audit,
		runner:       runner,
		logger:       logger,
		gracePeriod:  time.Duration(cfg.DeletionGracePeriodDays) * 24 * time.Hour,
		workerPool:   make(chan struct{}, workers),
		users:        make(map[string]*userState),
	}
}

func (c *Coordinator) stateFor(userID string) *userState {
	c.usersMu.Lock()
	defer c.usersMu.Unlock()
	st, ok := c.users[userID]
	if !ok {
		st = &userState{}
		c.users[userID] = st
	}
	return st
}

// RequestAnalysis triggers a pipeline run for userID. If an analysis is
// already running for this user, the request is coalesced: the running
// analysis will rerun once more on completion instead of a second
// analysis starting concurrently. Returns immediately; the run happens
// on the bounded worker pool. Rejects with ErrPaused without consuming
// a worker slot if the user has detection paused.
func (c *Coordinator) RequestAnalysis(ctx context.Context, userID string) error {
	profile, err := c.profiles.Get(ctx, userID)
	if err != nil && err != corestore.ErrNotFound {
		return fmt.Errorf("coordinator: load profile: %w", err)
	}
	if profile != nil && profile.Settings.DetectionPaused {
		return corestore.ErrPaused
	}

	st := c.stateFor(userID)
	st.mu.Lock()
	if st.running {
		st.pending = true
		st.mu.Unlock()
		return nil
	}
	st.running = true
	// Detached from the caller's context (it must keep running after
	// RequestAnalysis returns), but cancellable on our own terms: a
	// subsequent delete-profile command calls st.cancel to stop it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	st.cancel = cancel
	st.mu.Unlock()

	go func() {
		c.workerPool <- struct{}{}
		defer func() { <-c.workerPool }()
		c.runAnalysisLoop(runCtx, userID, st)
	}()
	return nil
}

// AnalyzeNow runs a single analysis pass for userID synchronously and
// returns the resulting profile, bypassing the worker pool and the
// per-user running/pending state. Used where the caller needs the result
// immediately (the cmd/cbie CLI's analyze command and the MCP analyze
// tool); fire-and-forget callers such as the MCP delete_observation
// handler use RequestAnalysis.
func (c *Coordinator) AnalyzeNow(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := c.profiles.Get(ctx, userID)
	if err != nil && err != corestore.ErrNotFound {
		return nil, fmt.Errorf("coordinator: load profile: %w", err)
	}
	if profile != nil && profile.Settings.DetectionPaused {
		return nil, corestore.ErrPaused
	}

	result, err := c.runner.Analyze(ctx, userID)
	if err != nil {
		c.logError("analyze", userID, err)
		c.recordAudit(ctx, userID, "analyze", "error", map[string]string{"error": err.Error()})
		return nil, fmt.Errorf("coordinator: analyze: %w", err)
	}
	c.recordAudit(ctx, userID, "analyze", "ok", nil)
	return result, nil
}

func (c *Coordinator) runAnalysisLoop(ctx context.Context, userID string, st *userState) {
	for {
		if _, err := c.runner.Analyze(ctx, userID); err != nil && !errors.Is(err, context.Canceled) {
			c.logError("analyze", userID, err)
		}

		st.mu.Lock()
		if !st.pending || ctx.Err() != nil {
			st.running = false
			st.pending = false
			st.cancel = nil
			st.mu.Unlock()
			return
		}
		st.pending = false
		st.mu.Unlock()
	}
}

// DeleteObservation soft-deletes one observation and audits the action.
// Idempotent: deleting an already-deleted observation is reported as a
// success to the caller (the audit records the no-op).
func (c *Coordinator) DeleteObservation(ctx context.Context, userID, observationID string) error {
	err := c.observations.SoftDelete(ctx, userID, observationID, time.Now())
	if err != nil && err != corestore.ErrAlreadyDeleted {
		return fmt.Errorf("coordinator: delete observation: %w", err)
	}
	c.recordAudit(ctx, userID, "delete_observation", "ok", map[string]string{"observation_id": observationID})
	return nil
}

// ReportObservation records a report reason without deactivating it.
func (c *Coordinator) ReportObservation(ctx context.Context, userID, observationID, reason string) error {
	if err := c.observations.MarkReported(ctx, userID, observationID, reason); err != nil {
		return fmt.Errorf("coordinator: report observation: %w", err)
	}
	c.recordAudit(ctx, userID, "report_observation", "ok", map[string]string{"observation_id": observationID, "reason": reason})
	return nil
}

// HideCluster and UnhideCluster toggle a cluster's user-controlled
// visibility, identified by canonical label (spec.md §4.7).
func (c *Coordinator) HideCluster(ctx context.Context, userID, clusterIdentity string) error {
	return c.setClusterVisibility(ctx, userID, clusterIdentity, true, "hide_cluster")
}

func (c *Coordinator) UnhideCluster(ctx context.Context, userID, clusterIdentity string) error {
	return c.setClusterVisibility(ctx, userID, clusterIdentity, false, "unhide_cluster")
}

func (c *Coordinator) setClusterVisibility(ctx context.Context, userID, clusterIdentity string, hidden bool, action string) error {
	if err := c.profiles.UpdateClusterVisibility(ctx, userID, clusterIdentity, hidden); err != nil {
		return fmt.Errorf("coordinator: %s: %w", action, err)
	}
	c.recordAudit(ctx, userID, action, "ok", map[string]string{"cluster_identity": clusterIdentity})
	return nil
}

// PauseDetection and ResumeDetection toggle whether RequestAnalysis
// accepts new analysis runs for this user.
func (c *Coordinator) PauseDetection(ctx context.Context, userID string) error {
	return c.setPaused(ctx, userID, true, "pause_detection")
}

func (c *Coordinator) ResumeDetection(ctx context.Context, userID string) error {
	return c.setPaused(ctx, userID, false, "resume_detection")
}

func (c *Coordinator) setPaused(ctx context.Context, userID string, paused bool, action string) error {
	profile, err := c.profiles.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("coordinator: %s: %w", action, err)
	}
	settings := profile.Settings
	settings.DetectionPaused = paused
	if err := c.profiles.UpdateSettings(ctx, userID, settings); err != nil {
		return fmt.Errorf("coordinator: %s: %w", action, err)
	}
	c.recordAudit(ctx, userID, action, "ok", nil)
	return nil
}

// RequestProfileDeletion schedules a user's profile and observations for
// deletion after the configured grace period, returning the deletion ID
// a subsequent CancelProfileDeletion call must present. Per spec.md §5,
// it first cancels any analysis currently in flight for this user so
// the run cannot race a subsequent purge.
func (c *Coordinator) RequestProfileDeletion(ctx context.Context, userID string) (deletionID string, completeAt time.Time, err error) {
	st := c.stateFor(userID)
	st.mu.Lock()
	if st.cancel != nil {
		st.cancel()
	}
	st.mu.Unlock()

	deletionID = uuid.New().String()
	completeAt = time.Now().Add(c.gracePeriod)
	if err := c.profiles.ScheduleDelete(ctx, userID, deletionID, completeAt); err != nil {
		return "", time.Time{}, fmt.Errorf("coordinator: request profile deletion: %w", err)
	}
	c.recordAudit(ctx, userID, "delete_profile", "scheduled", map[string]string{
		"deletion_id": deletionID,
		"complete_at": completeAt.Format(time.RFC3339),
	})
	return deletionID, completeAt, nil
}

// CancelProfileDeletion cancels a pending grace-period deletion.
func (c *Coordinator) CancelProfileDeletion(ctx context.Context, userID, deletionID string) error {
	if err := c.profiles.CancelDelete(ctx, userID, deletionID); err != nil {
		return fmt.Errorf("coordinator: cancel profile deletion: %w", err)
	}
	c.recordAudit(ctx, userID, "cancel_delete_profile", "ok", map[string]string{"deletion_id": deletionID})
	return nil
}

// ReapDueDeletions purges every user whose grace period has elapsed as
// of now: observations, prompts, and the profile row itself. Intended
// to be called periodically by a scheduler in cmd/cbie.
func (c *Coordinator) ReapDueDeletions(ctx context.Context, now time.Time) (int, error) {
	due, err := c.profiles.DuePendingDeletions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("coordinator: list due deletions: %w", err)
	}

	reaped := 0
	for _, userID := range due {
		if err := c.observations.Purge(ctx, userID); err != nil {
			c.logError("reap_observations", userID, err)
			continue
		}
		if err := c.prompts.Purge(ctx, userID); err != nil {
			c.logError("reap_prompts", userID, err)
			continue
		}
		if err := c.profiles.HardDelete(ctx, userID); err != nil {
			c.logError("reap_profile", userID, err)
			continue
		}
		c.recordAudit(ctx, userID, "delete_profile", "completed", nil)
		reaped++
	}
	return reaped, nil
}

func (c *Coordinator) recordAudit(ctx context.Context, userID, action, status string, fields map[string]string) {
	if c.audit == nil {
		return
	}
	_ = c.audit.Append(ctx, corestore.AuditEntry{
		Timestamp: time.Now(),
		UserID:    userID,
		Action:    action,
		Status:    status,
		Fields:    fields,
	})
}

func (c *Coordinator) logError(action, userID string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error("coordinator action failed", "action", action, "user_id", userID, "error", err)
}
