package aggregate

import (
	"testing"
	"time"

	"github.com/cbie/core/internal/clustering"
	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/models"
	"github.com/cbie/core/internal/scoring"
)

func testAggregator() *Aggregator {
	cfg := config.Default()
	n := 0
	idFactory := func() string {
		n++
		return "cluster-test"
	}
	return New(cfg.Aggregation, scoring.NewCalculator(cfg.Scoring), idFactory)
}

func obs(id, text string, clarity float64, createdOffset time.Duration, now time.Time) *models.Observation {
	return &models.Observation{
		ID:                   id,
		UserID:               "u1",
		Text:                 text,
		Credibility:          0.95,
		Clarity:              clarity,
		ExtractionConfidence: 0.80,
		ReinforcementCount:   10,
		DecayRate:            0.012,
		CreatedAt:            now.Add(createdOffset),
		LastSeenAt:           now,
		Embedding:            []float32{1, 0, 0},
		IsActive:             true,
	}
}

// TestAggregate_ScenarioA mirrors spec.md Scenario A: a single dense
// cluster of 4 high-quality observations should score as PRIMARY-range
// strength with a full set of wording variations.
func TestAggregate_ScenarioA(t *testing.T) {
	now := time.Now()
	a := testAggregator()

	members := []Member{
		{Observation: obs("o1", "prefers analogies", 0.85, -time.Hour, now), Probability: 0.9},
		{Observation: obs("o2", "uses metaphors", 0.85, -2*time.Hour, now), Probability: 0.9},
		{Observation: obs("o3", "learns by examples", 0.85, -3*time.Hour, now), Probability: 0.9},
		{Observation: obs("o4", "explains with analogies", 0.85, -4*time.Hour, now), Probability: 0.9},
	}

	result := clustering.Result{
		Centroids:             map[int][]float32{0: {1, 0, 0}},
		IntraClusterDistances: map[int]models.DistanceStats{0: {Mean: 0.01, Std: 0.001, Max: 0.02}},
	}

	clusters := a.Aggregate(map[int][]Member{0: members}, result, now)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]

	if c.ClusterSize != 4 {
		t.Errorf("ClusterSize = %d, want 4", c.ClusterSize)
	}
	if len(c.WordingVariations) != 4 {
		t.Errorf("WordingVariations has %d entries, want 4", len(c.WordingVariations))
	}
	if c.ClusterStrength <= 1.0 {
		t.Errorf("ClusterStrength = %f, want > 1.0 for scenario A", c.ClusterStrength)
	}
	if c.IsNoisePoint {
		t.Errorf("a 4-member cluster must not be marked as a noise point")
	}
}

// TestAggregate_DeletionDowngrade mirrors Scenario B: removing one
// member must not increase cluster_strength.
func TestAggregate_DeletionDowngrade(t *testing.T) {
	now := time.Now()
	a := testAggregator()

	full := []Member{
		{Observation: obs("o1", "prefers analogies", 0.85, -time.Hour, now)},
		{Observation: obs("o2", "uses metaphors", 0.85, -2*time.Hour, now)},
		{Observation: obs("o3", "learns by examples", 0.85, -3*time.Hour, now)},
		{Observation: obs("o4", "explains with analogies", 0.85, -4*time.Hour, now)},
	}
	reduced := full[:3]

	result := clustering.Result{
		Centroids:             map[int][]float32{0: {1, 0, 0}},
		IntraClusterDistances: map[int]models.DistanceStats{0: {Mean: 0.01}},
	}

	fullClusters := a.Aggregate(map[int][]Member{0: full}, result, now)
	reducedClusters := a.Aggregate(map[int][]Member{0: reduced}, result, now)

	if reducedClusters[0].ClusterSize != 3 {
		t.Errorf("ClusterSize = %d, want 3", reducedClusters[0].ClusterSize)
	}
	if len(reducedClusters[0].WordingVariations) != 3 {
		t.Errorf("WordingVariations has %d entries, want 3", len(reducedClusters[0].WordingVariations))
	}
	if reducedClusters[0].ClusterStrength >= fullClusters[0].ClusterStrength {
		t.Errorf("deletion must strictly decrease cluster_strength: reduced=%f full=%f",
			reducedClusters[0].ClusterStrength, fullClusters[0].ClusterStrength)
	}
}

// TestAggregate_DecayIntoNoiseRange mirrors Scenario C: a single
//400-day-old observation should have near-zero cluster_strength.
func TestAggregate_DecayIntoNoiseRange(t *testing.T) {
	now := time.Now()
	a := testAggregator()

	old := &models.Observation{
		ID: "o1", UserID: "u1", Text: "old behavior",
		Credibility: 0.9, Clarity: 0.8, ExtractionConfidence: 0.8,
		ReinforcementCount: 0, DecayRate: 0.02,
		CreatedAt:  now.Add(-400 * 24 * time.Hour),
		LastSeenAt: now.Add(-400 * 24 * time.Hour),
		Embedding:  []float32{1, 0, 0},
		IsActive:   true,
	}

	result := clustering.Result{
		Centroids:             map[int][]float32{0: {1, 0, 0}},
		IntraClusterDistances: map[int]models.DistanceStats{0: {}},
	}

	clusters := a.Aggregate(map[int][]Member{0: {{Observation: old}}}, result, now)
	if clusters[0].ClusterStrength >= 0.7 {
		t.Errorf("expected decayed single-observation cluster to fall well below the SECONDARY threshold, got strength=%f", clusters[0].ClusterStrength)
	}
}

func TestAggregate_CanonicalLabelIndependence(t *testing.T) {
	now := time.Now()
	a := testAggregator()

	members := []Member{
		{Observation: obs("o1", "prefers analogies", 0.85, -time.Hour, now)},
		{Observation: obs("o2", "uses metaphors", 0.9, -2*time.Hour, now)},
	}
	result := clustering.Result{
		Centroids:             map[int][]float32{0: {1, 0, 0}},
		IntraClusterDistances: map[int]models.DistanceStats{0: {Mean: 0.01}},
	}

	clusters := a.Aggregate(map[int][]Member{0: members}, result, now)
	c := clusters[0]

	before := c.ClusterStrength
	beforeConf := c.Confidence
	c.CanonicalLabel = "anything else entirely"

	if c.ClusterStrength != before || c.Confidence != beforeConf {
		t.Errorf("changing CanonicalLabel must not alter ClusterStrength or Confidence")
	}
}
