package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/cbie/core/internal/config"
)

func testCalculator() *Calculator {
	return NewCalculator(config.Default().Scoring)
}

func TestBehaviorWeight_Basic(t *testing.T) {
	c := testCalculator()

	bw := c.BehaviorWeight(0.95, 0.85, 0.80)
	if bw <= 0 || bw > 1 {
		t.Fatalf("expected BW in (0, 1], got %f", bw)
	}

	want := math.Pow(0.95, 0.35) * math.Pow(0.85, 0.40) * math.Pow(0.80, 0.25)
	if math.Abs(bw-want) > 1e-9 {
		t.Errorf("BehaviorWeight() = %v, want %v", bw, want)
	}
}

func TestBehaviorWeight_ZeroInputsClamped(t *testing.T) {
	c := testCalculator()

	bw := c.BehaviorWeight(0, 0, 0)
	if bw <= 0 {
		t.Errorf("expected a small positive BW for all-zero inputs, got %f", bw)
	}
	if math.IsNaN(bw) {
		t.Error("BehaviorWeight() must never be NaN")
	}
}

func TestBehaviorWeight_OutOfRangeClamped(t *testing.T) {
	c := testCalculator()

	bw := c.BehaviorWeight(1.5, -0.2, 2.0)
	if math.IsNaN(bw) || bw < 0 {
		t.Errorf("expected clamped, finite BW, got %f", bw)
	}
}

func TestAdjustedBehaviorWeight_NoDecayAtZeroElapsed(t *testing.T) {
	c := testCalculator()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	bw := 0.5
	abw := c.AdjustedBehaviorWeight(bw, 0, 0.01, now, now)

	if math.Abs(abw-bw) > 1e-9 {
		t.Errorf("expected ABW == BW at zero elapsed time and zero reinforcement, got %f want %f", abw, bw)
	}
}

func TestAdjustedBehaviorWeight_ReinforcementIncreasesWeight(t *testing.T) {
	c := testCalculator()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	bw := 0.5
	low := c.AdjustedBehaviorWeight(bw, 0, 0.01, now, now)
	high := c.AdjustedBehaviorWeight(bw, 10, 0.01, now, now)

	if high <= low {
		t.Errorf("expected higher reinforcement to increase ABW: low=%f high=%f", low, high)
	}
}

func TestAdjustedBehaviorWeight_DecaysOverTime(t *testing.T) {
	c := testCalculator()
	lastSeen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := lastSeen.Add(400 * 24 * time.Hour)

	bw := c.BehaviorWeight(0.9, 0.9, 0.9)
	abw := c.AdjustedBehaviorWeight(bw, 0, 0.02, lastSeen, now)

	// exp(-0.02 * 400) = exp(-8) ~= 3.35e-4
	wantRatio := math.Exp(-8)
	gotRatio := abw / bw
	if math.Abs(gotRatio-wantRatio) > 1e-6 {
		t.Errorf("decay ratio = %v, want %v", gotRatio, wantRatio)
	}
}

func TestAdjustedBehaviorWeight_FutureLastSeenClampedToZeroElapsed(t *testing.T) {
	c := testCalculator()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)

	bw := 0.5
	abw := c.AdjustedBehaviorWeight(bw, 0, 0.01, future, now)

	if math.Abs(abw-bw) > 1e-9 {
		t.Errorf("expected no decay applied for a last_seen_at in the future, got %f want %f", abw, bw)
	}
}

func TestScoreObservation(t *testing.T) {
	c := testCalculator()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	score := c.ScoreObservation(0.95, 0.85, 0.80, 10, 0.012, now, now)

	if score.BW <= 0 {
		t.Error("expected positive BW")
	}
	if score.ABW < score.BW {
		t.Error("expected reinforcement to keep ABW >= BW when there is no decay")
	}
}
