package corestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cbie/core/internal/models"
)

type pendingDeletion struct {
	deletionID string
	completeAt time.Time
}

// MemoryStore implements ObservationRepository, PromptRepository, and
// ProfileRepository entirely in memory, grounded on the teacher's
// internal/store/memory.go (a single RWMutex guarding plain maps). It is
// intended for tests and the in-process single-node deployment, not for
// cross-process use.
type MemoryStore struct {
	mu sync.RWMutex

	observations map[string]map[string]models.Observation // userID -> obsID -> obs
	prompts      map[string]models.Prompt                  // promptID -> prompt
	profiles     map[string]models.Profile                 // userID -> profile
	pending      map[string]pendingDeletion                // userID -> pending grace delete
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		observations: make(map[string]map[string]models.Observation),
		prompts:      make(map[string]models.Prompt),
		profiles:     make(map[string]models.Profile),
		pending:      make(map[string]pendingDeletion),
	}
}

// ListActive implements ObservationRepository.
func (s *MemoryStore) ListActive(ctx context.Context, userID string) ([]models.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Observation
	for _, obs := range s.observations[userID] {
		if obs.IsActive {
			out = append(out, obs)
		}
	}
	return out, nil
}

// Get implements ObservationRepository.
func (s *MemoryStore) Get(ctx context.Context, userID, observationID string) (*models.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser, ok := s.observations[userID]
	if !ok {
		return nil, ErrNotFound
	}
	obs, ok := byUser[observationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &obs, nil
}

// Put implements ObservationRepository.
func (s *MemoryStore) Put(ctx context.Context, obs models.Observation) error {
	if obs.ID == "" || obs.UserID == "" {
		return fmt.Errorf("%w: observation requires id and user_id", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.observations[obs.UserID]
	if !ok {
		byUser = make(map[string]models.Observation)
		s.observations[obs.UserID] = byUser
	}
	byUser[obs.ID] = obs
	return nil
}

// SoftDelete implements ObservationRepository.
func (s *MemoryStore) SoftDelete(ctx context.Context, userID, observationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.observations[userID]
	if !ok {
		return ErrNotFound
	}
	obs, ok := byUser[observationID]
	if !ok {
		return ErrNotFound
	}
	if !obs.IsActive {
		return ErrAlreadyDeleted
	}

	obs.SoftDelete(at)
	byUser[observationID] = obs
	return nil
}

// MarkReported implements ObservationRepository.
func (s *MemoryStore) MarkReported(ctx context.Context, userID, observationID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.observations[userID]
	if !ok {
		return ErrNotFound
	}
	obs, ok := byUser[observationID]
	if !ok {
		return ErrNotFound
	}
	obs.MarkReported(reason)
	byUser[observationID] = obs
	return nil
}

// Purge implements ObservationRepository.
func (s *MemoryStore) Purge(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observations, userID)
	return nil
}

// PutPrompt implements PromptRepository storage.
func (s *MemoryStore) PutPrompt(ctx context.Context, p models.Prompt) error {
	if p.ID == "" {
		return fmt.Errorf("%w: prompt requires id", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.ID] = p
	return nil
}

// ListByIDs implements PromptRepository.
func (s *MemoryStore) ListByIDs(ctx context.Context, promptIDs []string) ([]models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Prompt, 0, len(promptIDs))
	for _, id := range promptIDs {
		if p, ok := s.prompts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// PurgePrompts implements PromptRepository's user-scoped purge.
func (s *MemoryStore) PurgePrompts(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.prompts {
		if p.UserID == userID {
			delete(s.prompts, id)
		}
	}
	return nil
}

// GetProfile implements ProfileRepository's Get.
func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// UpsertProfile implements ProfileRepository.
func (s *MemoryStore) UpsertProfile(ctx context.Context, profile models.Profile) error {
	if profile.UserID == "" {
		return fmt.Errorf("%w: profile requires user_id", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

// UpdateClusterVisibility implements ProfileRepository.
func (s *MemoryStore) UpdateClusterVisibility(ctx context.Context, userID, clusterIdentity string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}

	found := false
	for i := range profile.BehaviorClusters {
		if profile.BehaviorClusters[i].Identity() == clusterIdentity {
			profile.BehaviorClusters[i].IsHidden = hidden
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}

	profile.Settings.HiddenClusterIdentities = setHiddenIdentity(
		profile.Settings.HiddenClusterIdentities, clusterIdentity, hidden)

	s.profiles[userID] = profile
	return nil
}

// UpdateSettings implements ProfileRepository.
func (s *MemoryStore) UpdateSettings(ctx context.Context, userID string, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	profile.Settings = settings
	s.profiles[userID] = profile
	return nil
}

// ScheduleDelete implements ProfileRepository.
func (s *MemoryStore) ScheduleDelete(ctx context.Context, userID, deletionID string, completeAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	profile.Settings.PendingDeletion = true
	now := completeAt
	profile.Settings.DeletionRequestedAt = &now
	s.profiles[userID] = profile
	s.pending[userID] = pendingDeletion{deletionID: deletionID, completeAt: completeAt}
	return nil
}

// CancelDelete implements ProfileRepository.
func (s *MemoryStore) CancelDelete(ctx context.Context, userID, deletionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[userID]
	if !ok || pending.deletionID != deletionID {
		return ErrNotFound
	}
	delete(s.pending, userID)

	profile, ok := s.profiles[userID]
	if ok {
		profile.Settings.PendingDeletion = false
		profile.Settings.DeletionRequestedAt = nil
		s.profiles[userID] = profile
	}
	return nil
}

// HardDelete implements ProfileRepository.
func (s *MemoryStore) HardDelete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	delete(s.pending, userID)
	return nil
}

// DuePendingDeletions implements ProfileRepository.
func (s *MemoryStore) DuePendingDeletions(ctx context.Context, asOf time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for userID, p := range s.pending {
		if !p.completeAt.After(asOf) {
			out = append(out, userID)
		}
	}
	return out, nil
}

// ListUserIDs implements ProfileRepository.
func (s *MemoryStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.profiles))
	for userID := range s.profiles {
		out = append(out, userID)
	}
	return out, nil
}

func setHiddenIdentity(identities []string, identity string, hidden bool) []string {
	filtered := identities[:0:0]
	for _, id := range identities {
		if id != identity {
			filtered = append(filtered, id)
		}
	}
	if hidden {
		filtered = append(filtered, identity)
	}
	return filtered
}

// ObservationStore returns s as an ObservationRepository.
func (s *MemoryStore) ObservationStore() ObservationRepository { return &memoryObservationView{s} }

// PromptStore returns s as a PromptRepository.
func (s *MemoryStore) PromptStore() PromptRepository { return &memoryPromptView{s} }

// ProfileStore returns s as a ProfileRepository.
func (s *MemoryStore) ProfileStore() ProfileRepository { return &memoryProfileView{s} }

// memoryObservationView, memoryPromptView, and memoryProfileView adapt
// MemoryStore's disambiguated method names (PutPrompt, GetProfile, ...)
// to the three separate repository interfaces, since Go cannot overload
// Put/Get across them on the same receiver.
type memoryObservationView struct{ s *MemoryStore }

func (v *memoryObservationView) ListActive(ctx context.Context, userID string) ([]models.Observation, error) {
	return v.s.ListActive(ctx, userID)
}
func (v *memoryObservationView) Get(ctx context.Context, userID, observationID string) (*models.Observation, error) {
	return v.s.Get(ctx, userID, observationID)
}
func (v *memoryObservationView) Put(ctx context.Context, obs models.Observation) error {
	return v.s.Put(ctx, obs)
}
func (v *memoryObservationView) SoftDelete(ctx context.Context, userID, observationID string, at time.Time) error {
	return v.s.SoftDelete(ctx, userID, observationID, at)
}
func (v *memoryObservationView) MarkReported(ctx context.Context, userID, observationID, reason string) error {
	return v.s.MarkReported(ctx, userID, observationID, reason)
}
func (v *memoryObservationView) Purge(ctx context.Context, userID string) error {
	return v.s.Purge(ctx, userID)
}

type memoryPromptView struct{ s *MemoryStore }

func (v *memoryPromptView) ListByIDs(ctx context.Context, promptIDs []string) ([]models.Prompt, error) {
	return v.s.ListByIDs(ctx, promptIDs)
}
func (v *memoryPromptView) Put(ctx context.Context, p models.Prompt) error {
	return v.s.PutPrompt(ctx, p)
}
func (v *memoryPromptView) Purge(ctx context.Context, userID string) error {
	return v.s.PurgePrompts(ctx, userID)
}

type memoryProfileView struct{ s *MemoryStore }

func (v *memoryProfileView) Get(ctx context.Context, userID string) (*models.Profile, error) {
	return v.s.GetProfile(ctx, userID)
}
func (v *memoryProfileView) Upsert(ctx context.Context, profile models.Profile) error {
	return v.s.UpsertProfile(ctx, profile)
}
func (v *memoryProfileView) UpdateClusterVisibility(ctx context.Context, userID, clusterIdentity string, hidden bool) error {
	return v.s.UpdateClusterVisibility(ctx, userID, clusterIdentity, hidden)
}
func (v *memoryProfileView) UpdateSettings(ctx context.Context, userID string, settings models.Settings) error {
	return v.s.UpdateSettings(ctx, userID, settings)
}
func (v *memoryProfileView) ScheduleDelete(ctx context.Context, userID, deletionID string, completeAt time.Time) error {
	return v.s.ScheduleDelete(ctx, userID, deletionID, completeAt)
}
func (v *memoryProfileView) CancelDelete(ctx context.Context, userID, deletionID string) error {
	return v.s.CancelDelete(ctx, userID, deletionID)
}
func (v *memoryProfileView) HardDelete(ctx context.Context, userID string) error {
	return v.s.HardDelete(ctx, userID)
}
func (v *memoryProfileView) ListUserIDs(ctx context.Context) ([]string, error) {
	return v.s.ListUserIDs(ctx)
}
func (v *memoryProfileView) DuePendingDeletions(ctx context.Context, asOf time.Time) ([]string, error) {
	return v.s.DuePendingDeletions(ctx, asOf)
}
