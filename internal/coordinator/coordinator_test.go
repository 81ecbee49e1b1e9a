package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/models"
)

type stubRunner struct {
	calls   int32
	delay   time.Duration
	onStart func()
}

func (r *stubRunner) Analyze(ctx context.Context, userID string) (*models.Profile, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.onStart != nil {
		r.onStart()
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return &models.Profile{UserID: userID}, nil
}

// ctxAwareRunner reports the context it was called with, so tests can
// assert on cancellation reaching the run.
type ctxAwareRunner struct {
	onStart func(ctx context.Context)
}

func (r *ctxAwareRunner) Analyze(ctx context.Context, userID string) (*models.Profile, error) {
	if r.onStart != nil {
		r.onStart(ctx)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func testCoordinator(runner AnalysisRunner) (*Coordinator, *corestore.MemoryStore) {
	store := corestore.NewMemoryStore()
	c := New(config.Default().Assembler, store.ObservationStore(), store.PromptStore(), store.ProfileStore(), nil, runner, nil)
	return c, store
}

func TestDeleteObservation_IsIdempotent(t *testing.T) {
	c, store := testCoordinator(&stubRunner{})
	ctx := context.Background()
	_ = store.ObservationStore().Put(ctx, models.Observation{ID: "o1", UserID: "u1", IsActive: true})

	if err := c.DeleteObservation(ctx, "u1", "o1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := c.DeleteObservation(ctx, "u1", "o1"); err != nil {
		t.Fatalf("second delete must be reported as success, got: %v", err)
	}
}

func TestHideUnhideCluster(t *testing.T) {
	c, store := testCoordinator(&stubRunner{})
	ctx := context.Background()
	_ = store.ProfileStore().Upsert(ctx, models.Profile{
		UserID:           "u1",
		BehaviorClusters: []models.Cluster{{CanonicalLabel: "prefers analogies"}},
	})

	if err := c.HideCluster(ctx, "u1", "prefers analogies"); err != nil {
		t.Fatalf("HideCluster: %v", err)
	}
	p, _ := store.ProfileStore().Get(ctx, "u1")
	if !p.BehaviorClusters[0].IsHidden {
		t.Fatal("expected cluster hidden")
	}

	if err := c.UnhideCluster(ctx, "u1", "prefers analogies"); err != nil {
		t.Fatalf("UnhideCluster: %v", err)
	}
	p, _ = store.ProfileStore().Get(ctx, "u1")
	if p.BehaviorClusters[0].IsHidden {
		t.Fatal("expected cluster visible again")
	}
}

func TestPauseResumeDetection_BlocksAnalysis(t *testing.T) {
	runner := &stubRunner{}
	c, store := testCoordinator(runner)
	ctx := context.Background()
	_ = store.ProfileStore().Upsert(ctx, models.Profile{UserID: "u1"})

	if err := c.PauseDetection(ctx, "u1"); err != nil {
		t.Fatalf("PauseDetection: %v", err)
	}
	if err := c.RequestAnalysis(ctx, "u1"); !errors.Is(err, corestore.ErrPaused) {
		t.Errorf("RequestAnalysis while paused = %v, want ErrPaused", err)
	}

	if err := c.ResumeDetection(ctx, "u1"); err != nil {
		t.Fatalf("ResumeDetection: %v", err)
	}
	if err := c.RequestAnalysis(ctx, "u1"); err != nil {
		t.Errorf("RequestAnalysis after resume: %v", err)
	}
}

// TestRequestAnalysis_CoalescesConcurrentRequests mirrors the
// at-most-one-in-flight / last-write-wins coalescing requirement: many
// requests arriving while an analysis is running must not each spawn a
// separate run.
func TestRequestAnalysis_CoalescesConcurrentRequests(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	runner := &stubRunner{onStart: func() {
		once.Do(func() { close(started) })
		<-release
	}}
	c, store := testCoordinator(runner)
	ctx := context.Background()
	_ = store.ProfileStore().Upsert(ctx, models.Profile{UserID: "u1"})

	if err := c.RequestAnalysis(ctx, "u1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	<-started

	for i := 0; i < 5; i++ {
		if err := c.RequestAnalysis(ctx, "u1"); err != nil {
			t.Fatalf("coalesced request %d: %v", i, err)
		}
	}
	close(release)

	deadline := time.After(2 * time.Second)
	for {
		st := c.stateFor("u1")
		st.mu.Lock()
		running := st.running
		st.mu.Unlock()
		if !running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("coordinator never settled")
		case <-time.After(10 * time.Millisecond):
		}
	}

	calls := atomic.LoadInt32(&runner.calls)
	if calls < 1 || calls > 2 {
		t.Errorf("expected 1 or 2 analyze calls (initial + one coalesced rerun), got %d", calls)
	}
}

func TestRequestProfileDeletion_ScheduleAndCancel(t *testing.T) {
	c, store := testCoordinator(&stubRunner{})
	ctx := context.Background()
	_ = store.ProfileStore().Upsert(ctx, models.Profile{UserID: "u1"})

	deletionID, completeAt, err := c.RequestProfileDeletion(ctx, "u1")
	if err != nil {
		t.Fatalf("RequestProfileDeletion: %v", err)
	}
	if deletionID == "" || !completeAt.After(time.Now()) {
		t.Fatalf("expected a future grace-period deadline, got %v", completeAt)
	}

	if err := c.CancelProfileDeletion(ctx, "u1", deletionID); err != nil {
		t.Fatalf("CancelProfileDeletion: %v", err)
	}
}

// TestRequestProfileDeletion_CancelsInFlightAnalysis covers spec.md §5's
// requirement that a profile-delete command cancels any in-flight
// analysis for that user before purging.
func TestRequestProfileDeletion_CancelsInFlightAnalysis(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once

	runner := &ctxAwareRunner{onStart: func(ctx context.Context) {
		once.Do(func() { close(started) })
	}}
	c, store := testCoordinator(runner)
	ctx := context.Background()
	_ = store.ProfileStore().Upsert(ctx, models.Profile{UserID: "u1"})

	if err := c.RequestAnalysis(ctx, "u1"); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	<-started

	if _, _, err := c.RequestProfileDeletion(ctx, "u1"); err != nil {
		t.Fatalf("RequestProfileDeletion: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		st := c.stateFor("u1")
		st.mu.Lock()
		running := st.running
		st.mu.Unlock()
		if !running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("in-flight analysis was never cancelled by RequestProfileDeletion")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestReapDueDeletions_PurgesEverything(t *testing.T) {
	c, store := testCoordinator(&stubRunner{})
	ctx := context.Background()
	_ = store.ProfileStore().Upsert(ctx, models.Profile{UserID: "u1"})
	_ = store.ObservationStore().Put(ctx, models.Observation{ID: "o1", UserID: "u1", IsActive: true})

	_, _, err := c.RequestProfileDeletion(ctx, "u1")
	if err != nil {
		t.Fatalf("RequestProfileDeletion: %v", err)
	}

	reaped, err := c.ReapDueDeletions(ctx, time.Now().Add(24*365*time.Hour))
	if err != nil {
		t.Fatalf("ReapDueDeletions: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected 1 user reaped, got %d", reaped)
	}

	if _, err := store.ProfileStore().Get(ctx, "u1"); !errors.Is(err, corestore.ErrNotFound) {
		t.Errorf("expected profile purged, got err=%v", err)
	}
	if _, err := store.ObservationStore().Get(ctx, "u1", "o1"); !errors.Is(err, corestore.ErrNotFound) {
		t.Errorf("expected observations purged, got err=%v", err)
	}
}
